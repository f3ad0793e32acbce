package frontier

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerCreatesQueuesLazily(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0, rand.New(rand.NewSource(1)))
	require.Empty(t, s.Domains())

	s.Push("a.test", Entry{NodeID: 1})
	s.Push("b.test", Entry{NodeID: 2})
	s.Push("a.test", Entry{NodeID: 3})

	require.Equal(t, []string{"a.test", "b.test"}, s.Domains())
	require.Equal(t, 3, s.Len())
	require.Equal(t, map[string]int{"a.test": 2, "b.test": 1}, s.Lens())
	require.Equal(t, 2, s.Queue("a.test").Len())
}

func TestSchedulerRoundRobinAcrossDomains(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0, rand.New(rand.NewSource(1)))
	for _, d := range []string{"a.test", "b.test", "c.test"} {
		s.Push(d, Entry{URL: d + "/1"})
		s.Push(d, Entry{URL: d + "/2"})
	}

	var got []string
	for i := 0; i < 6; i++ {
		e, ok := s.Pop()
		require.True(t, ok)
		got = append(got, e.URL)
	}
	require.Equal(t, []string{
		"a.test/1", "b.test/1", "c.test/1",
		"a.test/2", "b.test/2", "c.test/2",
	}, got)

	_, ok := s.Pop()
	require.False(t, ok)
	require.Equal(t, 0, s.RandomPicks())
}

// Drained domains are skipped, not served as empty pops.
func TestSchedulerSkipsEmptyQueues(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0, rand.New(rand.NewSource(1)))
	s.Push("a.test", Entry{URL: "a.test/1"})
	for i := 1; i <= 3; i++ {
		s.Push("b.test", Entry{URL: fmt.Sprintf("b.test/%d", i)})
	}

	var got []string
	for i := 0; i < 4; i++ {
		e, ok := s.Pop()
		require.True(t, ok)
		got = append(got, e.URL)
	}
	require.Equal(t, []string{"a.test/1", "b.test/1", "b.test/2", "b.test/3"}, got)
}

// With epsilon 1.0 every pop explores, so domain selection over many pops
// is roughly uniform.
func TestSchedulerEpsilonOneSelectsUniformly(t *testing.T) {
	t.Parallel()

	s := NewScheduler(1.0, rand.New(rand.NewSource(42)))
	domains := []string{"a.test", "b.test", "c.test", "d.test", "e.test"}
	for _, d := range domains {
		for i := 0; i < 400; i++ {
			s.Push(d, Entry{URL: fmt.Sprintf("%s/%d", d, i)})
		}
	}

	counts := make(map[string]int)
	const pops = 1000
	for i := 0; i < pops; i++ {
		e, ok := s.Pop()
		require.True(t, ok)
		counts[domainOf(e.URL)]++
	}

	require.Equal(t, pops, s.RandomPicks())
	for _, d := range domains {
		require.Greater(t, counts[d], 140, "domain %s starved: %v", d, counts)
		require.Less(t, counts[d], 260, "domain %s dominated: %v", d, counts)
	}
}

func TestSchedulerPopWithinDomainUsesPriority(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0, rand.New(rand.NewSource(1)))
	s.Push("a.test", Entry{NodeID: 1, Priority: 1})
	s.Push("a.test", Entry{NodeID: 2, Priority: 9})

	e, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, 2, e.NodeID)
}

func TestSchedulerEmpty(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0.5, rand.New(rand.NewSource(1)))
	_, ok := s.Pop()
	require.False(t, ok)
}

func domainOf(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '/' {
			return url[:i]
		}
	}
	return url
}
