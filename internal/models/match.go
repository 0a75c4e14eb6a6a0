package models

import (
	"strings"
	"time"
)

// Participant is one member of a gift exchange.
type Participant struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// DisplayName is what the giver sees on reveal: the name, plus the email in
// parentheses when there is one.
func (p Participant) DisplayName() string {
	if p.Email == "" {
		return p.Name
	}
	return p.Name + " (" + p.Email + ")"
}

// PairingRecord is produced once per giver and never modified. Key must only
// ever travel in a URL fragment.
type PairingRecord struct {
	ID         string
	GiverName  string
	GiverEmail string
	Key        []byte
	Ciphertext []byte
	IV         []byte
}

// StoredMatch is the sealed half of a PairingRecord as it crosses the storage
// API. Both fields are base64url.
type StoredMatch struct {
	ID             string `json:"id,omitempty"`
	EncryptedMatch string `json:"encryptedMatch"`
	IV             string `json:"iv"`
}

// Entry is a StoredMatch as held by a store, with a server-side retention
// deadline.
type Entry struct {
	Match     StoredMatch `json:"match"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// Notification asks the mailer to send one reveal link.
type Notification struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Link  string `json:"link"`
}

// DeliveryFailure is one recipient that could not be mailed.
type DeliveryFailure struct {
	Email  string `json:"email"`
	Reason string `json:"error"`
}

// DeliveryReport aggregates a notification batch.
type DeliveryReport struct {
	Sent   []string          `json:"sent_to"`
	Failed []DeliveryFailure `json:"failed"`
}

// ParseParticipant reads "Name" or "Name <email>".
func ParseParticipant(s string) Participant {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "<"); i >= 0 && strings.HasSuffix(s, ">") {
		return Participant{
			Name:  strings.TrimSpace(s[:i]),
			Email: strings.TrimSpace(s[i+1 : len(s)-1]),
		}
	}
	return Participant{Name: s}
}
