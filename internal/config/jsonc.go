package config

import (
	"encoding/json"
	"fmt"
	"os"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"
)

// decodeJSONCFile loads a JSONC file (comments and trailing commas
// tolerated) into dest.
func decodeJSONCFile(path string, dest any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	clean := jsonc.ToJSON(b)
	if err := json.Unmarshal(clean, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
