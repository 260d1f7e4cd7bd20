package tasks

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/desertthunder/rostersync/internal/models"
)

func TestReconcile(t *testing.T) {
	t.Run("Scenario", func(t *testing.T) {
		desired := models.NewEmailSet("a@x.com", "b@x.com", "c@x.com")
		current := models.NewEmailSet("b@x.com", "d@x.com")

		r := Reconcile(desired, current)
		assert.Equal(t, []string{"a@x.com", "c@x.com"}, r.ToAdd.Sorted())
		assert.Equal(t, []string{"d@x.com"}, r.ToRemove.Sorted())
		assert.Equal(t, []string{"b@x.com"}, r.InBoth.Sorted())
		assert.False(t, r.Empty())
	})

	t.Run("Idempotent", func(t *testing.T) {
		d := models.NewEmailSet("a@x.com", "b@x.com")
		r := Reconcile(d, d)

		assert.Zero(t, r.ToAdd.Len())
		assert.Zero(t, r.ToRemove.Len())
		assert.True(t, r.InBoth.Equal(d))
		assert.True(t, r.Empty())
	})

	t.Run("Empty Sides", func(t *testing.T) {
		d := models.NewEmailSet("a@x.com")
		empty := models.NewEmailSet()

		assert.True(t, Reconcile(d, empty).ToAdd.Equal(d))
		assert.True(t, Reconcile(empty, d).ToRemove.Equal(d))
		assert.True(t, Reconcile(empty, empty).Empty())
	})

	t.Run("Partition Laws", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		for i := range 200 {
			desired, current := randomSet(rng), randomSet(rng)
			r := Reconcile(desired, current)

			for e := range desired {
				_, inCurrent := current[e]
				assert.Equal(t, !inCurrent, r.ToAdd.Has(e), "case %d: %s", i, e)
				assert.Equal(t, inCurrent, r.InBoth.Has(e), "case %d: %s", i, e)
			}
			for e := range current {
				_, inDesired := desired[e]
				assert.Equal(t, !inDesired, r.ToRemove.Has(e), "case %d: %s", i, e)
			}

			union := models.NewEmailSet()
			for _, part := range []models.EmailSet{r.ToAdd, r.ToRemove, r.InBoth} {
				for e := range part {
					assert.True(t, union.Add(e), "case %d: %s appears in two parts", i, e)
				}
			}
			want := models.NewEmailSet()
			for e := range desired {
				want.Add(e)
			}
			for e := range current {
				want.Add(e)
			}
			assert.True(t, union.Equal(want), "case %d: union mismatch", i)
		}
	})
}

func randomSet(rng *rand.Rand) models.EmailSet {
	s := models.NewEmailSet()
	for range rng.IntN(30) {
		s.Add(fmt.Sprintf("user%d@x.com", rng.IntN(40)))
	}
	return s
}
