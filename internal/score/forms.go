// Package score turns fetched pages into value signals: it classifies
// HTML forms into named score types and extracts outbound links with the
// feature mappings the learner trains on.
package score

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Score types emitted by the form scorer. Each is the confidence that
// the page carries a form of that kind.
const (
	TypeLogin        = "login"
	TypeRegistration = "registration"
	TypeRecovery     = "password_recovery"
	TypeSearch       = "search"
	TypeContact      = "contact"
	TypeMailingList  = "mailinglist"
	TypeOrder        = "order"
)

var formTypes = []string{
	TypeContact,
	TypeLogin,
	TypeMailingList,
	TypeOrder,
	TypeRecovery,
	TypeRegistration,
	TypeSearch,
}

// FormScorer scores pages by the forms they contain, using static markup
// heuristics. A page's score for a type is the best confidence over its
// forms; types with no matching form score zero.
type FormScorer struct{}

// NewFormScorer returns the heuristic form scorer.
func NewFormScorer() *FormScorer {
	return &FormScorer{}
}

// Types lists every score type the scorer can emit, in stable order.
func (s *FormScorer) Types() []string {
	out := make([]string, len(formTypes))
	copy(out, formTypes)
	return out
}

// Score parses the page and returns a score for every known type.
func (s *FormScorer) Score(body []byte) (map[string]float64, error) {
	scores := make(map[string]float64, len(formTypes))
	for _, t := range formTypes {
		scores[t] = 0
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		typ, conf := classifyForm(form)
		if typ == "" {
			return
		}
		if conf > scores[typ] {
			scores[typ] = conf
		}
	})
	return scores, nil
}

// classifyForm assigns a form one type and a confidence. Password fields
// are the strongest signal, then input types, then the words appearing
// in the form's own markup.
func classifyForm(form *goquery.Selection) (string, float64) {
	passwords := form.Find(`input[type="password"]`).Length()
	searches := form.Find(`input[type="search"]`).Length()
	textareas := form.Find("textarea").Length()

	var emails, texts int
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		typ, _ := in.Attr("type")
		name, _ := in.Attr("name")
		switch strings.ToLower(typ) {
		case "email":
			emails++
		case "", "text":
			if strings.Contains(strings.ToLower(name), "email") {
				emails++
			} else {
				texts++
			}
		}
	})

	blob := markupBlob(form)

	switch {
	case passwords >= 2:
		return TypeRegistration, 0.9
	case passwords == 1 && containsAny(blob, "signup", "sign-up", "register", "create"):
		return TypeRegistration, 0.8
	case passwords == 1:
		return TypeLogin, 0.9
	case containsAny(blob, "forgot", "reset", "recover") && emails+texts > 0:
		return TypeRecovery, 0.8
	case searches > 0:
		return TypeSearch, 0.9
	case containsAny(blob, "search") || hasInputNamed(form, "q", "s", "query"):
		return TypeSearch, 0.7
	case containsAny(blob, "cart", "checkout", "order", "buy"):
		return TypeOrder, 0.7
	case textareas > 0 && containsAny(blob, "comment", "message", "contact", "feedback"):
		return TypeContact, 0.8
	case textareas > 0:
		return TypeContact, 0.6
	case emails > 0 && containsAny(blob, "subscribe", "newsletter", "mailing"):
		return TypeMailingList, 0.9
	case emails == 1 && texts == 0:
		return TypeMailingList, 0.5
	}
	return "", 0
}

// markupBlob flattens the identifying attributes and button text of a
// form into one lowercased string for keyword matching.
func markupBlob(form *goquery.Selection) string {
	var b strings.Builder
	for _, attr := range []string{"action", "id", "class", "name"} {
		if v, ok := form.Attr(attr); ok {
			b.WriteString(v)
			b.WriteByte(' ')
		}
	}
	form.Find("input, button, label").Each(func(_ int, el *goquery.Selection) {
		for _, attr := range []string{"name", "id", "placeholder", "value"} {
			if v, ok := el.Attr(attr); ok {
				b.WriteString(v)
				b.WriteByte(' ')
			}
		}
		b.WriteString(el.Text())
		b.WriteByte(' ')
	})
	return strings.ToLower(b.String())
}

func hasInputNamed(form *goquery.Selection, names ...string) bool {
	found := false
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		name = strings.ToLower(name)
		for _, want := range names {
			if name == want {
				found = true
			}
		}
	})
	return found
}

func containsAny(blob string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(blob, w) {
			return true
		}
	}
	return false
}
