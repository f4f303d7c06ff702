package gcovr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PathFixer remaps file paths recorded relative to a Boost superproject
// checkout ("libs/<repo>/...", "boost/<repo>/...") to paths relative to the
// library repository itself.
type PathFixer struct {
	repo    string
	include *regexp.Regexp
	src     *regexp.Regexp
	other   *regexp.Regexp
	headers *regexp.Regexp
}

// NewPathFixer creates a fixer for the library repository repo (e.g. "json").
func NewPathFixer(repo string) *PathFixer {
	q := regexp.QuoteMeta(repo)
	return &PathFixer{
		repo:    repo,
		include: regexp.MustCompile(`^libs/` + q + `/include/(.*)`),
		src:     regexp.MustCompile(`^libs/` + q + `/src/(.*)`),
		other:   regexp.MustCompile(`^libs/` + q + `/(.*)`),
		headers: regexp.MustCompile(`^boost/` + q + `/(.*)`),
	}
}

// Fix remaps one path. Paths outside the repository are returned with their
// leading "../" removed and otherwise unchanged.
func (f *PathFixer) Fix(path string) string {
	for strings.HasPrefix(path, "../") {
		path = path[3:]
	}

	if m := f.include.FindStringSubmatch(path); m != nil {
		return "include/" + m[1]
	}
	if m := f.src.FindStringSubmatch(path); m != nil {
		return "src/" + m[1]
	}
	if m := f.other.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	if m := f.headers.FindStringSubmatch(path); m != nil {
		return "include/boost/" + f.repo + "/" + m[1]
	}
	if path == "boost/"+f.repo {
		return "include/boost/" + f.repo
	}
	return path
}

// FixDocument rewrites the "filename" and "file" keys of every entry in the
// "files" array of a gcovr JSON document. Other content passes through and
// object keys keep their document order. It returns the rewritten document,
// the number of file entries, and whether a "files" array was present.
func (f *PathFixer) FixDocument(data []byte) ([]byte, int, bool, error) {
	var doc object
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, false, fmt.Errorf("decode gcovr json: %w", err)
	}

	rawFiles, ok := doc.get("files")
	if !ok {
		return data, 0, false, nil
	}

	var files []object
	if err := json.Unmarshal(rawFiles, &files); err != nil {
		return nil, 0, true, fmt.Errorf("decode files: %w", err)
	}

	for _, entry := range files {
		for _, key := range []string{"filename", "file"} {
			raw, ok := entry.get(key)
			if !ok {
				continue
			}
			var path string
			if err := json.Unmarshal(raw, &path); err != nil {
				continue
			}
			fixed, err := json.Marshal(f.Fix(path))
			if err != nil {
				return nil, 0, true, fmt.Errorf("encode path: %w", err)
			}
			entry.set(key, fixed)
		}
	}

	encodedFiles, err := json.Marshal(files)
	if err != nil {
		return nil, 0, true, fmt.Errorf("encode files: %w", err)
	}
	doc.set("files", encodedFiles)

	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, 0, true, fmt.Errorf("encode gcovr json: %w", err)
	}
	return out, len(files), true, nil
}

type member struct {
	key   string
	value json.RawMessage
}

// object is a JSON object decoded member by member so that re-encoding it
// keeps the original key order.
type object []member

func (o *object) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}
	members := object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = members
	return nil
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o object) get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// set replaces the value of an existing key. Missing keys are not added.
func (o object) set(key string, value json.RawMessage) {
	for i := range o {
		if o[i].key == key {
			o[i].value = value
		}
	}
}
