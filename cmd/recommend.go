package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/recommend"
)

// recommendOptions holds the recommend command flags.
type recommendOptions struct {
	lat, lon     float64
	radius       int
	limit        int
	severity     string
	session      string
	symptoms     []string
	category     string
	ageGroup     string
	preferOnline bool
	preferFree   bool
	jsonOut      bool
}

var recommendFlags recommendOptions

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank centers near a location",
	Example: `  centerrank recommend --lat 37.5665 --lon 126.9780
  centerrank recommend --lat 37.5665 --lon 126.9780 --symptoms insomnia,anxiety --severity MID --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := buildQuery(cmd.Flags())
		if err != nil {
			return err
		}

		env, err := initService(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Service.Recommend(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if recommendFlags.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		formatRecommendations(out, results)
		return nil
	},
}

// buildQuery turns recommend flags into a query. A profile is attached only
// when at least one profile flag was given.
func buildQuery(flags *pflag.FlagSet) (recommend.Query, error) {
	f := recommendFlags
	severity, err := model.ParseSeverity(f.severity)
	if err != nil {
		return recommend.Query{}, err
	}

	q := recommend.Query{
		Location:     model.Coordinate{Latitude: f.lat, Longitude: f.lon},
		Severity:     severity,
		RadiusMeters: f.radius,
		Limit:        f.limit,
		SessionID:    f.session,
	}

	var profile model.UserProfile
	var hasProfile bool
	if flags.Changed("symptoms") {
		profile.Symptoms = f.symptoms
		hasProfile = true
	}
	if flags.Changed("category") {
		profile.PreferredCategory = f.category
		hasProfile = true
	}
	if flags.Changed("age-group") {
		profile.AgeGroup = f.ageGroup
		hasProfile = true
	}
	if flags.Changed("prefer-online") {
		v := f.preferOnline
		profile.PreferOnline = &v
		hasProfile = true
	}
	if flags.Changed("prefer-free") {
		v := f.preferFree
		profile.PreferFree = &v
		hasProfile = true
	}
	if hasProfile {
		q.Profile = &profile
	}
	return q, nil
}

// formatRecommendations writes a ranked table of results to out.
func formatRecommendations(out io.Writer, results []model.RecommendationResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No centers found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tCENTER\tTOTAL\tDIST\tOPER\tSPEC\tPROG\tDISTANCE\tREASONS")
	_, _ = fmt.Fprintln(w, "-\t------\t-----\t----\t----\t----\t----\t--------\t-------")

	for i, r := range results {
		b := r.Breakdown
		name := truncate(r.CenterName, 30)
		total := fmt.Sprintf("%.2f", b.Total)
		if b.Degraded() {
			total += "*"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			i+1, name, total,
			b.DistanceScore, b.OperatingScore, b.SpecialtyScore, b.ProgramScore,
			r.Summary.DistanceText,
			strings.Join(r.Reasons, "; "),
		)
	}
	_ = w.Flush()
}

// bindRecommendFlags registers the recommend flags on f.
func bindRecommendFlags(f *pflag.FlagSet) {
	f.Float64Var(&recommendFlags.lat, "lat", 0, "user latitude")
	f.Float64Var(&recommendFlags.lon, "lon", 0, "user longitude")
	f.IntVar(&recommendFlags.radius, "radius", 0, "search radius in meters (default from config)")
	f.IntVar(&recommendFlags.limit, "limit", 0, "maximum results (default from config)")
	f.StringVar(&recommendFlags.severity, "severity", "", "assessment severity: LOW, MID or HIGH")
	f.StringVar(&recommendFlags.session, "session", "", "session id recorded with the results")
	f.StringSliceVar(&recommendFlags.symptoms, "symptoms", nil, "reported symptoms")
	f.StringVar(&recommendFlags.category, "category", "", "preferred program category")
	f.StringVar(&recommendFlags.ageGroup, "age-group", "", "age group: child, adolescent, adult, senior")
	f.BoolVar(&recommendFlags.preferOnline, "prefer-online", false, "prefer online programs")
	f.BoolVar(&recommendFlags.preferFree, "prefer-free", false, "prefer free programs")
	f.BoolVar(&recommendFlags.jsonOut, "json", false, "print results as JSON")
}

func init() {
	bindRecommendFlags(recommendCmd.Flags())
	_ = recommendCmd.MarkFlagRequired("lat")
	_ = recommendCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(recommendCmd)
}

// truncate shortens s to max runes, ending in an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
