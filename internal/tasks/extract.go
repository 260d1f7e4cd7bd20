package tasks

import (
	"encoding/json"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
)

// ExtractStats counts what happened to the raw records of one list.
type ExtractStats struct {
	Records    int // raw member records received
	Contacts   int // contacts in the resulting set
	Skipped    int // malformed members and tutor entries
	Blank      int // members or tutors without a usable email
	Duplicates int // contacts dropped because their email was already seen
}

// ExtractMembers flattens raw member records into a deduplicated [models.MemberSet].
//
// Each member contributes its own contact and one contact per tutor, independently:
// a tutor is kept even when its member has no usable email. Malformed entries are
// skipped without affecting the others.
func ExtractMembers(records []json.RawMessage) (*models.MemberSet, ExtractStats) {
	set := models.NewMemberSet()
	stats := ExtractStats{Records: len(records)}

	add := func(c models.Contact) {
		if shared.NormalizeEmail(c.Email) == "" {
			stats.Blank++
			return
		}
		if !set.Add(c) {
			stats.Duplicates++
		}
	}

	for _, raw := range records {
		member, skipped, ok := models.DecodeSourceMember(raw)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Skipped += skipped

		add(models.Contact{Email: member.Email, FirstName: member.FirstName, LastName: member.LastName})

		for _, tutor := range member.Tutors {
			first, last := shared.SplitFullName(tutor.FullName)
			add(models.Contact{Email: tutor.Email, FirstName: first, LastName: last})
		}
	}

	stats.Contacts = set.Len()
	return set, stats
}
