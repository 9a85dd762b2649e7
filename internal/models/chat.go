package models

// ChatMessage is one chat record. ClientKey is the client-generated
// correlation token used to match an optimistic local record with its
// server-confirmed counterpart; Pending marks the optimistic copy.
type ChatMessage struct {
	ID               string `json:"id,omitempty"`
	ClientKey        string `json:"clientKey,omitempty"`
	RoomID           string `json:"roomId,omitempty"`
	From             string `json:"from,omitempty"`
	SenderName       string `json:"senderName,omitempty"`
	Text             string `json:"text"`
	TranslatedTextEn string `json:"translatedTextEn,omitempty"`
	SenderLanguage   string `json:"senderLanguage,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	Pending          bool   `json:"pending,omitempty"`
}
