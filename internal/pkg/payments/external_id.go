package payments

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const externalIDPrefix = "TRX"

// NewExternalID builds the caller-visible transaction handle:
// TRX-{locationID}-{yyyymmddhhmmss}-{8 hex}. The random suffix comes from
// crypto/rand; the unique index on external_id catches the residual
// collision case at insert time.
func NewExternalID(locationID uint, now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read secure random bytes: %w", err)
	}
	suffix := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%s-%d-%s-%s", externalIDPrefix, locationID, now.Format("20060102150405"), suffix), nil
}
