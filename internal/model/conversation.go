package model

import "time"

// LeadSource identifies where a lead originally came from.
type LeadSource string

const (
	LeadSourceFacebook LeadSource = "facebook"
	LeadSourcePropGuru LeadSource = "propertyguru"
	LeadSourceReferral LeadSource = "referral"
	LeadSourceWalkIn   LeadSource = "walk_in"
	LeadSourceUnknown  LeadSource = "unknown"
)

// LeadStatus tracks the lead through the sales funnel.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusEngaged     LeadStatus = "engaged"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusAppointment LeadStatus = "appointment"
	LeadStatusClosed      LeadStatus = "closed"
)

// LeadProfile holds what is known about a lead before the run starts.
type LeadProfile struct {
	Source LeadSource `json:"source"`
	Status LeadStatus `json:"status"`
	Budget float64    `json:"budget"`
	Intent string     `json:"intent"`
}

// HistoryMessage is a single prior turn in the conversation.
type HistoryMessage struct {
	Sender    string    `json:"sender"` // "lead" or "agent"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext is the immutable input to a pipeline run: the inbound
// message plus everything already known about the conversation and lead.
type ConversationContext struct {
	LeadID     string           `json:"lead_id"`
	SenderID   string           `json:"sender_id"`
	SenderName string           `json:"sender_name,omitempty"`
	Text       string           `json:"text"`
	History    []HistoryMessage `json:"history"`
	Lead       LeadProfile      `json:"lead_profile"`
}

// RecentHistory returns the last n turns, oldest first.
func (c ConversationContext) RecentHistory(n int) []HistoryMessage {
	if n <= 0 || len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// TurnCount counts the lead's turns including the current message.
func (c ConversationContext) TurnCount() int {
	count := 1
	for _, h := range c.History {
		if h.Sender == "lead" {
			count++
		}
	}
	return count
}
