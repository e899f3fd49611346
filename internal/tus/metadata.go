package tus

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// EncodeMetadata renders the Upload-Metadata header value.
// Pairs are "key base64(value)" joined by commas; keys are sorted so the header is deterministic.
func EncodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		if key == "" || strings.ContainsAny(key, " ,") {
			return "", fmt.Errorf("invalid metadata key %q", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		value := metadata[key]
		if value == "" {
			pairs = append(pairs, key)
			continue
		}
		pairs = append(pairs, key+" "+base64.StdEncoding.EncodeToString([]byte(value)))
	}

	return strings.Join(pairs, ","), nil
}

// DecodeMetadata parses an Upload-Metadata header value
func DecodeMetadata(header string) (map[string]string, error) {
	metadata := make(map[string]string)
	if strings.TrimSpace(header) == "" {
		return metadata, nil
	}

	for _, pair := range strings.Split(header, ",") {
		parts := strings.Fields(pair)
		switch len(parts) {
		case 1:
			metadata[parts[0]] = ""
		case 2:
			value, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				return nil, fmt.Errorf("metadata %q: %w", parts[0], err)
			}
			metadata[parts[0]] = string(value)
		default:
			return nil, fmt.Errorf("malformed metadata pair %q", pair)
		}
	}

	return metadata, nil
}
