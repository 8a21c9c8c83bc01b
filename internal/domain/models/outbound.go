package models

// OutboundMessage is a text notification pushed to a station manager or officer.
type OutboundMessage struct {
	To         string `json:"to"`
	Message    string `json:"message"`
	PreviewURL bool   `json:"preview_url"`
}

// AutomationReply describes the canned response sent back for a command.
type AutomationReply struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
