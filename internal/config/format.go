package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// fileFormat is how a regiond config file is written. Both formats decode
// through the same strict JSON decoder.
type fileFormat string

const (
	formatJSON fileFormat = "json"
	formatYAML fileFormat = "yaml"
)

// formatOf picks the format from the file extension. Anything that is not
// .yaml or .yml is read as JSON.
func formatOf(name string) fileFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// toJSON returns data as JSON. A YAML file must hold exactly one document
// with string keys; an empty one is an empty config.
func toJSON(name string, data []byte) ([]byte, fileFormat, error) {
	f := formatOf(name)
	if f == formatJSON {
		return data, f, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte("{}"), f, nil
		}
		return nil, f, fmt.Errorf("decode yaml: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, f, fmt.Errorf("%w: more than one yaml document", ErrInvalid)
		}
		return nil, f, fmt.Errorf("decode yaml: %w", err)
	}
	if v == nil {
		return []byte("{}"), f, nil
	}

	v, err := stringKeys("", v)
	if err != nil {
		return nil, f, err
	}
	j, err := json.Marshal(v)
	if err != nil {
		return nil, f, fmt.Errorf("yaml to json: %w", err)
	}
	return j, f, nil
}

// stringKeys rewrites YAML maps as map[string]any. A non-string key is an
// error naming its dotted path.
func stringKeys(path string, in any) (any, error) {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			nv, err := stringKeys(join(path, k), v)
			if err != nil {
				return nil, err
			}
			x[k] = nv
		}
		return x, nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s: key %v is not a string", ErrInvalid, orRoot(path), k)
			}
			nv, err := stringKeys(join(path, ks), v)
			if err != nil {
				return nil, err
			}
			m[ks] = nv
		}
		return m, nil
	case []any:
		for i := range x {
			nv, err := stringKeys(fmt.Sprintf("%s[%d]", path, i), x[i])
			if err != nil {
				return nil, err
			}
			x[i] = nv
		}
		return x, nil
	default:
		return in, nil
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func orRoot(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
