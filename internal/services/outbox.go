package services

import (
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
)

// Outbox collects what a unit of work announces. It is flushed only after
// the unit commits and is reset before each retry.
type Outbox struct {
	events   []events.Event
	balances map[string]*models.Account
	order    []string
	ledger   []models.Transaction
	settled  []settlement
}

type settlement struct {
	entity string
	id     string
	state  string
	amount int64
}

func (o *Outbox) Add(e events.Event) {
	o.events = append(o.events, e)
}

// balance keeps only the last snapshot per account.
func (o *Outbox) balance(a *models.Account) {
	if o.balances == nil {
		o.balances = make(map[string]*models.Account)
	}
	if _, ok := o.balances[a.ID]; !ok {
		o.order = append(o.order, a.ID)
	}
	cp := *a
	o.balances[a.ID] = &cp
}

func (o *Outbox) reset() {
	*o = Outbox{}
}

// all returns the balance events followed by the rest in insertion order.
func (o *Outbox) all() []events.Event {
	out := make([]events.Event, 0, len(o.order)+len(o.events))
	for _, id := range o.order {
		a := o.balances[id]
		out = append(out, events.New(events.BalanceUpdated,
			events.Keys{Accounts: []string{id}},
			BalancePayload{AccountID: id, Balance: a.Balance, Reputation: a.Reputation}))
	}
	return append(out, o.events...)
}
