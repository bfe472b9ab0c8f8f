package syncclient

import (
	"context"
	"sync"
	"time"
)

type PaymentState string

const (
	PaymentPending  PaymentState = "PENDING"
	PaymentResolved PaymentState = "RESOLVED"
)

type Payment struct {
	TransactionID string
	State         PaymentState
	Succeeded     bool
	StartedAt     time.Time
	ResolvedAt    time.Time
}

// PendingPayments tracks deposits between initiation and the gateway's
// confirmation. Each payment resolves once; later outcomes are ignored.
type PendingPayments struct {
	mu      sync.Mutex
	items   map[string]*Payment
	waiters map[string][]chan Payment
}

func NewPendingPayments() *PendingPayments {
	return &PendingPayments{
		items:   make(map[string]*Payment),
		waiters: make(map[string][]chan Payment),
	}
}

func (p *PendingPayments) Track(transactionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[transactionID]; ok {
		return
	}
	p.items[transactionID] = &Payment{
		TransactionID: transactionID,
		State:         PaymentPending,
		StartedAt:     time.Now(),
	}
}

// Resolve reports whether this call performed the transition. Unknown ids
// are ignored: the payment was started elsewhere.
func (p *PendingPayments) Resolve(transactionID string, succeeded bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.items[transactionID]
	if !ok || pay.State == PaymentResolved {
		return false
	}
	pay.State = PaymentResolved
	pay.Succeeded = succeeded
	pay.ResolvedAt = time.Now()

	for _, ch := range p.waiters[transactionID] {
		ch <- *pay
	}
	delete(p.waiters, transactionID)
	return true
}

func (p *PendingPayments) Get(transactionID string) (Payment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.items[transactionID]
	if !ok {
		return Payment{}, false
	}
	return *pay, true
}

// Pending lists the ids still waiting for an outcome.
func (p *PendingPayments) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for id, pay := range p.items {
		if pay.State == PaymentPending {
			out = append(out, id)
		}
	}
	return out
}

// Wait blocks until the payment resolves or ctx ends.
func (p *PendingPayments) Wait(ctx context.Context, transactionID string) (Payment, error) {
	p.mu.Lock()
	pay, ok := p.items[transactionID]
	if !ok {
		p.mu.Unlock()
		return Payment{}, ErrUnknownKey
	}
	if pay.State == PaymentResolved {
		out := *pay
		p.mu.Unlock()
		return out, nil
	}
	ch := make(chan Payment, 1)
	p.waiters[transactionID] = append(p.waiters[transactionID], ch)
	p.mu.Unlock()

	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return Payment{}, ctx.Err()
	}
}

// Forget drops resolved payments.
func (p *PendingPayments) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pay := range p.items {
		if pay.State == PaymentResolved {
			delete(p.items, id)
		}
	}
}
