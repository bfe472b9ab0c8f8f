package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// API groups the handlers served under /api/v1.
type API struct {
	Wallet  *WalletHandler
	Videos  *VideoHandler
	Reviews *ReviewHandler
	Events  *EventsHandler
}

// Mount registers the API on r. Streams are kept out of the request
// timeout.
func (a *API) Mount(r chi.Router, auth func(http.Handler) http.Handler, timeout time.Duration) {
	r.Route("/api/v1", func(r chi.Router) {
		// Authenticated by signature, not by token.
		r.With(chimw.Timeout(timeout)).Post("/wallet/deposit/callback", a.Wallet.DepositCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/events/subscribe", a.Events.Subscribe)
			r.Get("/events/ws", a.Events.WebSocket)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(timeout))

				r.Post("/events/{connectionId}/watch", a.Events.Watch)
				r.Post("/events/logout", a.Events.Logout)

				r.Post("/wallet/deposit", a.Wallet.Deposit)
				r.Get("/wallet/deposit/{txId}", a.Wallet.DepositStatus)
				r.Get("/wallet/balance", a.Wallet.Balance)
				r.Get("/wallet/transactions", a.Wallet.Transactions)

				r.Post("/videos/vote", a.Videos.Vote)
				r.Post("/videos/series", a.Videos.CreateSeries)
				r.Post("/videos", a.Videos.CreateEpisode)
				r.Get("/videos/workspace", a.Videos.Workspace)
				r.Get("/videos/series/{id}", a.Videos.Series)
				r.Get("/videos/{id}", a.Videos.Episode)

				r.Post("/interactions/review", a.Reviews.Create)
				r.Post("/interactions/vote-review", a.Reviews.Vote)
				r.Get("/interactions/video/{episodeId}/reviews", a.Reviews.List)
			})
		})
	})
}
