package dispatch

import (
	"encoding/json"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"marketplace-storefront/internal/domain"
)

// Keys that look like confirmation codes but carry address or money data.
var ignoredCodeKeys = map[string]bool{
	"country_code":  true,
	"currency_code": true,
	"postal_code":   true,
}

var codeWords = []string{"token", "otp", "pin", "code"}

type directPath struct {
	object string
	field  string
	kind   domain.ConfirmationKind
}

var directPaths = []directPath{
	{"qr", "url", domain.ConfirmationLink},
	{"qr", "token", domain.ConfirmationToken},
	{"beacon", "url", domain.ConfirmationLink},
	{"beacon", "token", domain.ConfirmationToken},
}

// ExtractConfirmation looks for something the recipient can show the
// carrier: known locations first, then a breadth-first scan of the whole
// payload with keys visited in sorted order. Every object and array is
// visited once, so cyclic payloads terminate. Nil means nothing was found.
func ExtractConfirmation(payload map[string]any) *domain.Confirmation {
	if payload == nil {
		return nil
	}
	for _, p := range directPaths {
		obj, ok := payload[p.object].(map[string]any)
		if !ok {
			continue
		}
		value, ok := scalar(obj[p.field])
		if !ok {
			continue
		}
		if p.kind == domain.ConfirmationLink && !looksLikeURL(value) {
			continue
		}
		return &domain.Confirmation{Kind: p.kind, Value: value, Path: p.object + "." + p.field}
	}
	return scan(payload)
}

type node struct {
	value any
	path  string
}

type identity struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

func scan(root map[string]any) *domain.Confirmation {
	visited := make(map[identity]bool)
	queue := []node{{value: root}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		id, ok := identityOf(n.value)
		if !ok || visited[id] {
			continue
		}
		visited[id] = true

		switch v := n.value.(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				path := joinPath(n.path, k)
				if c := match(k, v[k], path); c != nil {
					return c
				}
				if isContainer(v[k]) {
					queue = append(queue, node{value: v[k], path: path})
				}
			}
		case []any:
			for i, item := range v {
				if isContainer(item) {
					queue = append(queue, node{value: item, path: n.path + "[" + strconv.Itoa(i) + "]"})
				}
			}
		}
	}
	return nil
}

func match(key string, value any, path string) *domain.Confirmation {
	lower := strings.ToLower(key)
	str, ok := scalar(value)
	if !ok {
		return nil
	}
	if strings.Contains(lower, "qr") && looksLikeURL(str) {
		return &domain.Confirmation{Kind: domain.ConfirmationLink, Value: str, Path: path}
	}
	if ignoredCodeKeys[lower] {
		return nil
	}
	for _, w := range keyWords(key) {
		for _, needle := range codeWords {
			if strings.HasPrefix(w, needle) || strings.HasSuffix(w, needle) {
				kind := domain.ConfirmationCode
				if needle == "token" {
					kind = domain.ConfirmationToken
				}
				return &domain.Confirmation{Kind: kind, Value: str, Path: path}
			}
		}
	}
	return nil
}

// keyWords splits snake, kebab, dotted and camel case keys into lower-case
// words.
func keyWords(key string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// scalar renders strings and numbers; anything else is not a candidate.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		return x, x != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func looksLikeURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{kind: reflect.Map, ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{kind: reflect.Slice, ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return identity{}, false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
