package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"review-scraper/models"
)

// ReportService prints the end-of-run summary.
type ReportService struct {
	out io.Writer
}

func NewReportService(out io.Writer) *ReportService {
	if out == nil {
		out = os.Stdout
	}
	return &ReportService{out: out}
}

func (s *ReportService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  REVIEW SCRAPE SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Targets\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total in input     : \033[1m%d\033[0m\n", r.Total)
	fmt.Fprintf(w, "  Resumed from index : \033[1m%d\033[0m\n", r.StartIndex)
	fmt.Fprintf(w, "  Processed this run : \033[1m%d\033[0m\n", r.Processed)
	fmt.Fprintf(w, "  Succeeded          : \033[1;32m%d\033[0m\n", r.Succeeded)
	fmt.Fprintf(w, "  Partial            : \033[1;33m%d\033[0m\n", r.Partial)
	fmt.Fprintf(w, "  Failed             : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Missing URL        : \033[1m%d\033[0m\n", r.Missing)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Reviews\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Collected this run : \033[1m%d\033[0m\n", r.Reviews)
	fmt.Fprintf(w, "  Elapsed            : \033[1m%s\033[0m\n", r.Elapsed.Round(time.Second))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Failed attempts by error type\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ErrorTypes) == 0 {
		fmt.Fprintf(w, "  No errors\n")
	} else {
		type typeCount struct {
			label string
			count int
		}
		var types []typeCount
		for label, cnt := range r.ErrorTypes {
			types = append(types, typeCount{label, cnt})
		}
		sort.Slice(types, func(i, j int) bool {
			if types[i].count != types[j].count {
				return types[i].count > types[j].count
			}
			return types[i].label < types[j].label
		})
		for _, tc := range types {
			bar := strings.Repeat("█", min(tc.count, 40))
			fmt.Fprintf(w, "  %-14s %s (%d)\n", tc.label, bar, tc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}
