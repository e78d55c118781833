package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/service/search"
)

// channelView hands everything the controller shows to the command waiting
// for it. Values nobody waits for are dropped so the dispatcher never blocks.
type channelView struct {
	businesses chan []*domain.Business
	business   chan *domain.Business
	reviews    chan []domain.Review
	errs       chan error
}

var _ search.View = (*channelView)(nil)

func newChannelView() *channelView {
	return &channelView{
		businesses: make(chan []*domain.Business, 1),
		business:   make(chan *domain.Business, 1),
		reviews:    make(chan []domain.Review, 1),
		errs:       make(chan error, 1),
	}
}

func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
	}
}

func (v *channelView) ShowBusinesses(businesses []*domain.Business) { offer(v.businesses, businesses) }
func (v *channelView) ShowBusiness(business *domain.Business)       { offer(v.business, business) }
func (v *channelView) ShowError(err error)                          { offer(v.errs, err) }

func (v *channelView) ShowReviews(_ *domain.Business, reviews []domain.Review) {
	offer(v.reviews, reviews)
}

// await returns the next value sent on ch, or the first error shown.
func await[T any](ctx context.Context, v *channelView, ch chan T) (T, error) {
	var zero T
	select {
	case value := <-ch:
		return value, nil
	case err := <-v.errs:
		return zero, err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func printBusinesses(w io.Writer, businesses []*domain.Business) error {
	if len(businesses) == 0 {
		_, err := fmt.Fprintln(w, "No restaurants found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tRATING\tPRICE\tCATEGORIES\tID")
	for i, b := range businesses {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\t%s\n",
			i, b.Name, b.Rating, b.Price, categoryTitles(b.Categories), b.ID)
	}
	return tw.Flush()
}

func printBusiness(w io.Writer, b *domain.Business) error {
	fmt.Fprintf(w, "%s (%s)\n", b.Name, b.ID)
	fmt.Fprintf(w, "  Rating:     %.1f (%d reviews)\n", b.Rating, b.ReviewCount)
	if len(b.Categories) > 0 {
		fmt.Fprintf(w, "  Categories: %s\n", categoryTitles(b.Categories))
	}
	if len(b.Address) > 0 {
		fmt.Fprintf(w, "  Address:    %s\n", strings.Join(b.Address, ", "))
	}
	if b.Phone != "" {
		fmt.Fprintf(w, "  Phone:      %s\n", b.Phone)
	}
	if b.Hours != nil {
		status := "closed now"
		if b.IsOpenNow() {
			status = "open now"
		}
		fmt.Fprintf(w, "  Hours:      %s\n", status)
	}
	if len(b.Photos) > 0 {
		fmt.Fprintf(w, "  Photos:     %d\n", len(b.Photos))
	}
	_, err := fmt.Fprintf(w, "  Location:   %s\n", b.Coordinate)
	return err
}

func printReviews(w io.Writer, reviews []domain.Review) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, "No reviews.")
		return err
	}
	for _, r := range reviews {
		fmt.Fprintf(w, "\n%.0f/5 by %s on %s\n", r.Rating, r.UserName, r.TimeCreated.Format("2006-01-02"))
		fmt.Fprintf(w, "  %s\n", r.Text)
	}
	return nil
}

func categoryTitles(categories []domain.Category) string {
	titles := make([]string, 0, len(categories))
	for _, c := range categories {
		title := c.Title
		if title == "" {
			title = c.Alias
		}
		titles = append(titles, title)
	}
	return strings.Join(titles, ", ")
}
