package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/placerank/internal/model"
)

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// formatHistory writes a tabular list of rank checks to out.
func formatHistory(out io.Writer, checks []model.RankCheckResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCHECKED\tKEYWORD\tRANK\tPLACE\tN1\tN2\tN3\tTOTAL")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t----\t-----\t--\t--\t--\t-----")

	for _, c := range checks {
		rank := "-"
		if c.Found {
			rank = fmt.Sprintf("%d", c.Rank)
			if c.IsAd {
				rank += " (ad)"
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.3f\t%.3f\t%.3f\t%d\n",
			truncateID(c.ID),
			c.CheckedAt.Local().Format("2006-01-02 15:04"),
			c.Keyword,
			rank,
			truncate(c.PlaceName, 30),
			c.N1, c.N2, c.N3,
			c.TotalCompetitorCount,
		)
	}
	_ = w.Flush()
}

// formatDiscovery writes a discovery report summary and its keywords to out.
func formatDiscovery(out io.Writer, rep *model.DiscoveryReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Place:\t%s (%s)\n", rep.Place.Name, rep.Place.ID)
	_, _ = fmt.Fprintf(w, "Generated:\t%d\n", rep.Stats.Generated)
	_, _ = fmt.Fprintf(w, "Qualified:\t%d\n", rep.Stats.Qualified)
	_, _ = fmt.Fprintf(w, "CPC excluded:\t%d\n", rep.Stats.CPCExcluded)
	_, _ = fmt.Fprintf(w, "Out of rank:\t%d\n", rep.Stats.OutOfRank)
	if rep.Stats.Unavailable > 0 {
		_, _ = fmt.Fprintf(w, "Unavailable:\t%d\n", rep.Stats.Unavailable)
	}
	_ = w.Flush()

	if len(rep.Keywords) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tKEYWORD\tTOTAL\tCOMPETITION")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----\t-----------")
	for _, kw := range rep.Keywords {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", kw.Rank, kw.Keyword, kw.TotalCompetitorCount, kw.Competition)
	}
	_ = w.Flush()
}

// formatDiscoveryList writes one line per discovery report to out.
func formatDiscoveryList(out io.Writer, reports []model.DiscoveryReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tPLACE\tGENERATED\tQUALIFIED")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t---------\t---------")
	for _, r := range reports {
		place := r.Place.Name
		if place == "" {
			place = r.PlaceURL
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			truncateID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(place, 30),
			r.Stats.Generated,
			r.Stats.Qualified,
		)
	}
	_ = w.Flush()
}

// formatCompetitors writes the competitor listing for a keyword to out.
func formatCompetitors(out io.Writer, snap *model.CompetitorSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Keyword:\t%s\n", snap.Keyword)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", snap.Total)
	_ = w.Flush()
	if len(snap.Competitors) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tNAME\tTEL\tREVIEWS\tBLOG\tRATING\tAD")
	_, _ = fmt.Fprintln(w, "----\t----\t---\t-------\t----\t------\t--")
	for _, c := range snap.Competitors {
		ad := ""
		if c.IsAd {
			ad = "yes"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%.1f\t%s\n",
			c.Rank, truncate(c.Name, 30), c.Phone, c.ReviewCount, c.BlogReviewCount, c.Rating, ad)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
