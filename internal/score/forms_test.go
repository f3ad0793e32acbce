package score

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormScorerTypesStable(t *testing.T) {
	t.Parallel()

	s := NewFormScorer()
	types := s.Types()
	require.Equal(t, []string{
		TypeContact, TypeLogin, TypeMailingList, TypeOrder,
		TypeRecovery, TypeRegistration, TypeSearch,
	}, types)

	types[0] = "mutated"
	require.Equal(t, TypeContact, s.Types()[0])
}

func TestFormScorerClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		typ  string
		conf float64
	}{
		{
			name: "login",
			html: `<form action="/login"><input type="text" name="username"><input type="password" name="pass"><button>Log in</button></form>`,
			typ:  TypeLogin,
			conf: 0.9,
		},
		{
			name: "registration by double password",
			html: `<form><input type="password" name="p1"><input type="password" name="p2"></form>`,
			typ:  TypeRegistration,
			conf: 0.9,
		},
		{
			name: "registration by signup wording",
			html: `<form action="/signup"><input type="text" name="user"><input type="password" name="pass"></form>`,
			typ:  TypeRegistration,
			conf: 0.8,
		},
		{
			name: "password recovery",
			html: `<form action="/account/reset"><input type="email" name="email"><button>Send reset link</button></form>`,
			typ:  TypeRecovery,
			conf: 0.8,
		},
		{
			name: "search by input type",
			html: `<form><input type="search" name="term"></form>`,
			typ:  TypeSearch,
			conf: 0.9,
		},
		{
			name: "search by input name",
			html: `<form action="/find"><input name="q"><button>Go</button></form>`,
			typ:  TypeSearch,
			conf: 0.7,
		},
		{
			name: "order",
			html: `<form action="/cart/add"><input type="hidden" name="sku"><button>Add to cart</button></form>`,
			typ:  TypeOrder,
			conf: 0.7,
		},
		{
			name: "contact",
			html: `<form action="/contact"><input name="from"><textarea name="message"></textarea></form>`,
			typ:  TypeContact,
			conf: 0.8,
		},
		{
			name: "newsletter",
			html: `<form action="/newsletter"><input type="email" name="email"><button>Subscribe</button></form>`,
			typ:  TypeMailingList,
			conf: 0.9,
		},
		{
			name: "bare email capture",
			html: `<form><input type="email" name="e"></form>`,
			typ:  TypeMailingList,
			conf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scores, err := NewFormScorer().Score([]byte("<html><body>" + tt.html + "</body></html>"))
			require.NoError(t, err)
			require.InDelta(t, tt.conf, scores[tt.typ], 1e-9, "scores: %v", scores)

			for typ, val := range scores {
				if typ != tt.typ {
					require.Zero(t, val, "unexpected score for %s: %v", typ, scores)
				}
			}
		})
	}
}

func TestFormScorerNoForms(t *testing.T) {
	t.Parallel()

	scores, err := NewFormScorer().Score([]byte(`<html><body><p>nothing here</p></body></html>`))
	require.NoError(t, err)
	require.Len(t, scores, 7)
	for typ, val := range scores {
		require.Zero(t, val, "type %s", typ)
	}
}

// A page may carry several forms; each contributes to its own type.
func TestFormScorerMultipleForms(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<form action="/login"><input type="password" name="p"></form>
		<form><input type="search" name="term"></form>
	</body></html>`

	scores, err := NewFormScorer().Score([]byte(html))
	require.NoError(t, err)
	require.InDelta(t, 0.9, scores[TypeLogin], 1e-9)
	require.InDelta(t, 0.9, scores[TypeSearch], 1e-9)
}

// The best form wins when two forms map to the same type.
func TestFormScorerKeepsMaxPerType(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<form><input type="email" name="e"></form>
		<form action="/newsletter"><input type="email" name="email"><button>Subscribe</button></form>
	</body></html>`

	scores, err := NewFormScorer().Score([]byte(html))
	require.NoError(t, err)
	require.InDelta(t, 0.9, scores[TypeMailingList], 1e-9)
}

func TestFormScorerEmptyBody(t *testing.T) {
	t.Parallel()

	scores, err := NewFormScorer().Score(nil)
	require.NoError(t, err)
	for typ, val := range scores {
		require.Zero(t, val, "type %s", typ)
	}
}
