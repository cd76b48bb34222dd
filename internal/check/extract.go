package check

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/jmespath/go-jmespath"
	"github.com/pkg/errors"
)

// HTMLExtractor evaluates CSS selectors over HTML bodies.
type HTMLExtractor struct {
	// Attribute to read from the first matching element. Empty means the
	// element's text.
	Attribute string
}

func (h HTMLExtractor) Extract(body []byte, selector string) (string, bool, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return "", false, errors.Wrapf(err, "invalid css selector %q", selector)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrap(err, "parsing html")
	}

	match := doc.FindMatcher(sel).First()
	if match.Length() == 0 {
		return "", false, nil
	}
	if h.Attribute == "" {
		return strings.TrimSpace(match.Text()), true, nil
	}
	v, ok := match.Attr(h.Attribute)
	return v, ok, nil
}

// JMESPathExtractor evaluates JMESPath expressions over JSON bodies.
type JMESPathExtractor struct{}

func (JMESPathExtractor) Extract(body []byte, expr string) (string, bool, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", false, errors.New("response is not valid JSON")
	}

	result, err := jmespath.Search(expr, data)
	if err != nil {
		return "", false, errors.Wrapf(err, "evaluating %s", expr)
	}

	switch v := result.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false, errors.Wrap(err, "converting extracted value")
		}
		return string(b), true, nil
	}
}
