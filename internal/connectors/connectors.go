package connectors

import "tariffbench/internal"

// MailConnector fetches candidate invoice mail from one provider inbox.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
