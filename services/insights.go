package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"rental-scraper/models"
	"rental-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate aggregates a batch of stored listings. Prices are compared as
// monthly equivalents.
func (s *InsightService) Generate(listings []*models.StoredListing) *models.InsightReport {
	report := &models.InsightReport{
		BySource:    make(map[models.Source]int),
		BySuburb:    make(map[string]int),
		ByRiskLevel: make(map[models.RiskLevel]int),
	}
	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	prices := make([]float64, 0, len(listings))
	var total float64

	for _, l := range listings {
		report.BySource[l.Source]++
		if l.Suburb != "" {
			report.BySuburb[l.Suburb]++
		}
		level := models.RiskLevelFor(l.ScamScore)
		report.ByRiskLevel[level]++
		if level == models.RiskHigh {
			report.HighRisk = append(report.HighRisk, l)
		}
		if l.PetFriendly {
			report.PetFriendly++
		}
		if l.Furnished {
			report.FurnishedCount++
		}

		p := MonthlyPrice(&l.Listing)
		if p <= 0 {
			continue
		}
		prices = append(prices, p)
		total += p
		if report.Cheapest == nil || p < MonthlyPrice(&report.Cheapest.Listing) {
			report.Cheapest = l
		}
		if report.MostExpensive == nil || p > MonthlyPrice(&report.MostExpensive.Listing) {
			report.MostExpensive = l
		}
	}

	if len(prices) > 0 {
		sort.Float64s(prices)
		report.MinPrice = round2(prices[0])
		report.MaxPrice = round2(prices[len(prices)-1])
		report.AveragePrice = round2(total / float64(len(prices)))
		report.MedianPrice = round2(median(prices))
	}

	sort.SliceStable(report.HighRisk, func(i, j int) bool {
		return report.HighRisk[i].ScamScore > report.HighRisk[j].ScamScore
	})
	return report
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (s *InsightService) Print(r *models.InsightReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RENTAL SCRAPE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings stored  : \033[1m%d\033[0m\n", r.TotalListings)
	for _, src := range models.AllSources {
		if n := r.BySource[src]; n > 0 {
			fmt.Fprintf(w, "  %-23s: \033[1m%d\033[0m\n", src, n)
		}
	}
	fmt.Fprintf(w, "  Pet friendly           : %d\n", r.PetFriendly)
	fmt.Fprintf(w, "  Furnished              : %d\n", r.FurnishedCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32mR %s\033[0m\n", formatRand(r.AveragePrice))
		fmt.Fprintf(w, "  Median price  : \033[1;32mR %s\033[0m\n", formatRand(r.MedianPrice))
		fmt.Fprintf(w, "  Minimum price : \033[1;32mR %s\033[0m\n", formatRand(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32mR %s\033[0m\n", formatRand(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.Cheapest != nil {
		printListing(w, "Cheapest Listing", thin, r.Cheapest, "32")
	}
	if r.MostExpensive != nil {
		printListing(w, "Most Expensive Listing", thin, r.MostExpensive, "31")
	}

	fmt.Fprintf(w, "\033[1;33m  Scam Risk\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, level := range []models.RiskLevel{models.RiskSafe, models.RiskLow, models.RiskMedium, models.RiskHigh} {
		fmt.Fprintf(w, "  %-8s %d\n", level, r.ByRiskLevel[level])
	}
	for i, l := range r.HighRisk {
		if i == 5 {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.HighRisk)-5)
			break
		}
		fmt.Fprintf(w, "  \033[1;31m%.2f\033[0m %s\n", l.ScamScore, truncate(l.Title, 45))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Suburb\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.BySuburb) == 0 {
		fmt.Fprintf(w, "  No suburb data\n")
	} else {
		type suburbCount struct {
			suburb string
			count  int
		}
		var subs []suburbCount
		for sub, cnt := range r.BySuburb {
			subs = append(subs, suburbCount{sub, cnt})
		}
		sort.Slice(subs, func(i, j int) bool {
			if subs[i].count != subs[j].count {
				return subs[i].count > subs[j].count
			}
			return subs[i].suburb < subs[j].suburb
		})
		for _, sc := range subs {
			bar := strings.Repeat("█", min(sc.count, 30))
			fmt.Fprintf(w, "  %s %s (%d)\n", pad(truncate(sc.suburb, 28), 30), bar, sc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printListing(w io.Writer, heading, thin string, l *models.StoredListing, color string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", heading)
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  %s\n", truncate(l.Title, 50))
	fmt.Fprintf(w, "  Suburb : %s\n", l.Suburb)
	fmt.Fprintf(w, "  Price  : \033[1;%sm R %s/%s\033[0m\n", color, formatRand(l.Price), l.PriceFrequency)
	fmt.Fprintf(w, "  Link   : %s\n", l.SourceURL)
	fmt.Fprintln(w)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// truncate shortens s to a display width, so wide runes do not break columns.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
