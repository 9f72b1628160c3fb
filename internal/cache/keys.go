package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key builds a deterministic cache key from a namespace and an ordered list of
// argument values joined by ":". Arguments are canonically stringified so that
// identical tuples always collide on the same key and distinct tuples never do:
// floats use the shortest round-trip form, dates use YYYY-MM-DD, and string
// slices are sorted before joining.
func Key(namespace string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, namespace)
	for _, arg := range args {
		parts = append(parts, canonical(arg))
	}
	return strings.Join(parts, ":")
}

func canonical(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format("2006-01-02")
	case uuid.UUID:
		return v.String()
	case []string:
		sorted := make([]string, len(v))
		copy(sorted, v)
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func LatestArtifactKey(kind string) string {
	return Key("artifact", kind, "latest")
}

func ArtifactKey(kind string, asOfDate time.Time) string {
	return Key("artifact", kind, asOfDate)
}

func MovieKey(movieID int64) string {
	return Key("movie", movieID)
}

func RecommendationsKey(movieID int64) string {
	return Key("recommendations", movieID)
}

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s", clientKey)
}
