package metricgen

import (
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	Mt "github.com/maroda/metricgen/types"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// UrlCat is variadic, concatenating any set of strings into a URL.
// It can be used to embed a dynamic string alongside static parts of a URI.
func UrlCat(u ...string) string {
	completeURL := strings.Join(u, "")
	slog.Debug("New endpoint", slog.String("URL", completeURL))
	return completeURL
}

// FloatPrecise rounds f to the given number of decimals
func FloatPrecise(f float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(f*pow) / pow
}

// FormatFixed prints f with a fixed number of decimals, never as "-0"
func FormatFixed(f float64, decimals int) string {
	f = FloatPrecise(f, decimals)
	if f == 0 {
		f = 0 // drops the sign of -0
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// StoredName is the name as the registry keeps it, with the generator prefix
func StoredName(name string) string {
	if strings.HasPrefix(name, Mt.GeneratorPrefix) {
		return name
	}
	return Mt.GeneratorPrefix + name
}

// BackendName strips the generator prefix before sending a name to the collaborator
func BackendName(name string) string {
	return strings.TrimPrefix(name, Mt.GeneratorPrefix)
}

// DisplayName is the user facing label, which is the bare name
func DisplayName(name string) string {
	return BackendName(name)
}
