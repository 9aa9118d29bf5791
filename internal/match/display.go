package match

import "github.com/dconnect/courier/internal/model"

var defaultDescriptions = map[model.MatchStatus]string{
	model.MatchPending:           "This match is waiting for confirmation from both parties.",
	model.MatchCarrierAccepted:   "The carrier has accepted this match. Waiting for requester confirmation.",
	model.MatchRequesterAccepted: "The requester has accepted this match. Waiting for carrier confirmation.",
	model.MatchAccepted:          "Both parties have confirmed this match. You can now coordinate the shipment details.",
	model.MatchRejected:          "This match has been declined by one or both parties.",
}

// Description returns the text shown under a match's status badge. The
// server's display status wins; unrecognized statuses are shown verbatim.
func Description(m model.Match) string {
	if m.DisplayStatus != "" {
		return m.DisplayStatus
	}
	if text, ok := defaultDescriptions[m.Status.Normalize()]; ok {
		return text
	}
	return string(m.Status)
}
