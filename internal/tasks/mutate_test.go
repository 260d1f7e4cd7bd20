package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/desertthunder/rostersync/internal/testing"
)

func batchSizes(calls [][]string) []int {
	sizes := make([]int, len(calls))
	for i, c := range calls {
		sizes[i] = len(c)
	}
	return sizes
}

func TestBatches(t *testing.T) {
	tc := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "320 by 150", n: 320, size: 150, sizes: []int{150, 150, 20}},
		{name: "exact multiple", n: 300, size: 150, sizes: []int{150, 150}},
		{name: "smaller than batch", n: 3, size: 150, sizes: []int{3}},
		{name: "empty", n: 0, size: 150, sizes: []int{}},
		{name: "default size", n: 151, size: 0, sizes: []int{150, 1}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sizes, batchSizes(Batches(numberedEmails(tt.n), tt.size)))
		})
	}
}

func TestBatchMutator(t *testing.T) {
	ctx := context.Background()

	t.Run("Add Isolates Failed Batch", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors")
		dest.AddErr = func(call int, _ []string) error {
			if call == 2 {
				return errors.New("brevo unavailable")
			}
			return nil
		}

		emails := numberedEmails(320)
		res := NewBatchMutator(dest, nil, 150, nil).Add(ctx, listID, emails)

		assert.Equal(t, []int{150, 150, 20}, batchSizes(dest.AddCalls))
		assert.Equal(t, 3, res.Batches)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.Failed())
		assert.Equal(t, 170, res.Applied)

		require.Len(t, res.Failures, 1)
		assert.Equal(t, 1, res.Failures[0].Index)
		assert.Equal(t, emails[150:300], res.Failures[0].Emails)
		assert.EqualError(t, res.Failures[0].Err, "brevo unavailable")

		assert.Len(t, dest.Members(listID), 170)
	})

	t.Run("Add Skips Emails Already Present", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors", "a@x.com")
		mutator := NewBatchMutator(dest, NewSnapshotReader(dest, 500, nil), 150, nil)

		res := mutator.Add(ctx, listID, []string{"a@x.com", "b@x.com", "c@x.com"})

		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, [][]string{{"b@x.com", "c@x.com"}}, dest.AddCalls)
		assert.Len(t, dest.ListContactsCalls, 3, "one existence check per email")
	})

	t.Run("Add With Everything Present", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors", "a@x.com", "b@x.com")
		mutator := NewBatchMutator(dest, NewSnapshotReader(dest, 500, nil), 150, nil)

		res := mutator.Add(ctx, listID, []string{"a@x.com", "b@x.com"})
		assert.Equal(t, 2, res.Skipped)
		assert.Zero(t, res.Batches)
		assert.Empty(t, dest.AddCalls)
	})

	t.Run("Remove Has No Pre-filter", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors", "a@x.com", "d@x.com")
		mutator := NewBatchMutator(dest, NewSnapshotReader(dest, 500, nil), 150, nil)

		res := mutator.Remove(ctx, listID, []string{"d@x.com", "gone@x.com"})

		assert.Equal(t, 1, res.Succeeded)
		assert.Zero(t, res.Skipped)
		assert.Empty(t, dest.ListContactsCalls)
		assert.Equal(t, [][]string{{"d@x.com", "gone@x.com"}}, dest.RemoveCalls)
		assert.Equal(t, []string{"a@x.com"}, dest.Members(listID))
	})

	t.Run("Remove Isolates Failed Batch", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors", numberedEmails(5)...)
		dest.RemoveErr = func(call int, _ []string) error {
			if call == 1 {
				return errors.New("timeout")
			}
			return nil
		}

		res := NewBatchMutator(dest, nil, 2, nil).Remove(ctx, listID, numberedEmails(5))
		assert.Equal(t, []int{2, 2, 1}, batchSizes(dest.RemoveCalls))
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.Failed())
		assert.Len(t, dest.Members(listID), 2)
	})

	t.Run("Canceled Context Stops Calls", func(t *testing.T) {
		dest := tu.NewMockDestination()
		listID := dest.AddList("MonClub Seniors")

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		res := NewBatchMutator(dest, nil, 150, nil).Add(canceled, listID, numberedEmails(320))
		assert.Empty(t, dest.AddCalls)
		assert.Equal(t, 3, res.Failed())
		assert.ErrorIs(t, res.Failures[0].Err, context.Canceled)
	})
}
