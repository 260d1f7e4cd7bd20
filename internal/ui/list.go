package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/rostersync/internal/models"
)

var (
	_ list.Item = sourceListItem{}
)

// sourceListItem wraps [models.SourceList] to implement [list.Item].
type sourceListItem struct {
	list   models.SourceList
	prefix string
}

func (i sourceListItem) FilterValue() string { return i.list.Name }
func (i sourceListItem) Title() string       { return i.list.Name }
func (i sourceListItem) Description() string {
	return fmt.Sprintf("%s → %s%s", i.list.ID, i.prefix, i.list.Name)
}
