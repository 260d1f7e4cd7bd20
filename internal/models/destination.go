package models

import "strconv"

// ContactAttributes are the display attributes written to a destination contact.
type ContactAttributes struct {
	FirstName string
	LastName  string
}

// Map renders the attributes with the destination's attribute names.
func (a ContactAttributes) Map() map[string]string {
	return map[string]string{
		"FIRSTNAME": a.FirstName,
		"LASTNAME":  a.LastName,
	}
}

// ContactInfo is a contact as reported by the destination service.
//
// ID is zero when the service did not return a readable identifier.
type ContactInfo struct {
	ID      int64   `json:"id"`
	Email   string  `json:"email"`
	ListIDs []int64 `json:"listIds,omitempty"`
}

// Identifier returns the contact ID as a string, or fallback when the ID is unreadable.
func (c ContactInfo) Identifier(fallback string) string {
	if c.ID == 0 {
		return fallback
	}
	return strconv.FormatInt(c.ID, 10)
}

// DestinationList is a contact list in the destination service.
type DestinationList struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FolderID    int64  `json:"folderId"`
	Subscribers int    `json:"uniqueSubscribers"`
}

// Folder groups destination lists.
type Folder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
