package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/restaurant-reviews/internal/config"
	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/logger"
	"github.com/phrazzld/restaurant-reviews/internal/platform/yelp"
	"github.com/phrazzld/restaurant-reviews/internal/service/location"
	"github.com/phrazzld/restaurant-reviews/internal/service/search"
	"github.com/phrazzld/restaurant-reviews/internal/task"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	trace      bool

	out    io.Writer
	errOut io.Writer
}

// withApp loads configuration, sets up logging and runs fn with a ready app.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	opts := []config.Option{config.WithEnvFile(o.envFile)}
	if o.configFile != "" {
		opts = append(opts, config.WithConfigFile(o.configFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Log, o.errOut)
	log.Debug("configuration loaded",
		"base_url", cfg.Yelp.BaseURL,
		"store_backend", cfg.Store.Backend,
		"worker_count", cfg.Queue.WorkerCount)

	a, err := newApp(cfg, log, o.out)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := logger.WithLogger(cmd.Context(), log.With("command", cmd.Name()))
	return fn(ctx, a)
}

func (o *rootOptions) traceWriter() io.Writer {
	if !o.trace {
		return nil
	}
	return o.errOut
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "restaurants",
		Short:         "Find restaurants nearby and read their reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file to read, empty to skip")
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "Print operation state transitions")

	root.AddCommand(
		newAuthorizeCommand(opts),
		newLogoutCommand(opts),
		newSearchCommand(opts),
		newBusinessCommand(opts),
	)
	return root
}

func newAuthorizeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Obtain an access token with the client credentials and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.cfg.Yelp.ClientID == "" || a.cfg.Yelp.ClientSecret == "" {
					return errNoCredentials
				}

				account, err := a.authorizer().Authorize(ctx)
				if err != nil {
					return err
				}
				if err := a.store.Save(ctx, account); err != nil {
					return fmt.Errorf("failed to store account: %w", err)
				}

				_, err = fmt.Fprintf(a.out, "Authorized until %s\n",
					account.ExpiresAt().Local().Format("2006-01-02 15:04"))
				return err
			})
		},
	}
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Delete(ctx); err != nil {
					return fmt.Errorf("failed to delete account: %w", err)
				}
				_, err := fmt.Fprintln(a.out, "Stored account removed.")
				return err
			})
		},
	}
}

type searchOptions struct {
	latitude   float64
	longitude  float64
	limit      int
	radius     int
	sortBy     string
	categories []string
	span       float64
	selectRow  int
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "List restaurants around a coordinate, optionally matching a term",
		Long: `Lists restaurants around the configured coordinate, or the one given with
--latitude and --longitude. With a term, the nearby list is replaced by the
results for the term. --select loads details and reviews of one row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				return runSearch(ctx, cmd, a, so, strings.Join(args, " "), opts.traceWriter())
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&so.latitude, "latitude", 0, "Latitude to search around")
	flags.Float64Var(&so.longitude, "longitude", 0, "Longitude to search around")
	flags.IntVar(&so.limit, "limit", 0, "Maximum number of results (1-50)")
	flags.IntVar(&so.radius, "radius", 0, "Search radius in meters")
	flags.StringVar(&so.sortBy, "sort", "", "Sort order: best_match, rating, review_count or distance")
	flags.StringSliceVar(&so.categories, "category", nil, "Category alias to filter by, repeatable")
	flags.Float64Var(&so.span, "span", 0, "Only list results within this many degrees around the coordinate")
	flags.IntVar(&so.selectRow, "select", -1, "Row to show details and reviews for")
	return cmd
}

// searchParams merges the flags that were set over the configured defaults.
func (so *searchOptions) searchParams(cmd *cobra.Command, cfg config.SearchConfig) (domain.Coordinate, yelp.SearchParams) {
	flags := cmd.Flags()

	coordinate := domain.NewCoordinate(cfg.Latitude, cfg.Longitude)
	if flags.Changed("latitude") {
		coordinate.Latitude = so.latitude
	}
	if flags.Changed("longitude") {
		coordinate.Longitude = so.longitude
	}

	params := yelp.SearchParams{
		Limit:  cfg.Limit,
		SortBy: yelp.SortType(cfg.SortBy),
	}
	if flags.Changed("limit") {
		params.Limit = so.limit
	}
	if flags.Changed("sort") {
		params.SortBy = yelp.SortType(so.sortBy)
	}
	radius := cfg.Radius
	if flags.Changed("radius") {
		radius = so.radius
	}
	if radius > 0 {
		params.Radius = &radius
	}
	for _, alias := range so.categories {
		params.Categories = append(params.Categories, domain.Category{Alias: alias})
	}
	return coordinate, params
}

func runSearch(
	ctx context.Context,
	cmd *cobra.Command,
	a *app,
	so *searchOptions,
	term string,
	trace io.Writer,
) error {
	log := logger.FromContext(ctx)

	coordinate, params := so.searchParams(cmd, a.cfg.Search)
	if params.Limit < 1 || params.Limit > yelp.DefaultLimit {
		return fmt.Errorf("limit must be between 1 and %d", yelp.DefaultLimit)
	}

	account, err := a.account(ctx)
	if err != nil {
		return err
	}

	dispatcher := task.NewSerialDispatcher()
	defer dispatcher.Close()
	queue := a.newQueue(dispatcher, trace)
	defer queue.Stop()

	view := newChannelView()
	controller, err := search.NewController(search.Dependencies{
		Client:     a.client(account),
		Account:    &account,
		Location:   location.NewManager(location.NewFixedSource(coordinate), a.logger),
		Queue:      queue,
		Dispatcher: dispatcher,
		View:       view,
		Defaults:   params,
	}, a.logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	if err := controller.Start(); err != nil {
		return err
	}
	businesses, err := await(ctx, view, view.businesses)
	if err != nil {
		return fmt.Errorf("nearby search failed: %w", err)
	}

	if term != "" {
		controller.UpdateSearchTerm(term)
		if businesses, err = await(ctx, view, view.businesses); err != nil {
			return fmt.Errorf("search for %q failed: %w", term, err)
		}
	}
	log.Debug("search finished", "term", term, "results", len(businesses))

	if so.span > 0 {
		region := search.NewRegion(coordinate, so.span, so.span)
		if businesses, err = controller.Results().WithinRegion(region); err != nil {
			return err
		}
	}
	if err := printBusinesses(a.out, businesses); err != nil {
		return err
	}

	if so.selectRow < 0 {
		return nil
	}
	return showSelection(ctx, a.out, controller, view, so.selectRow)
}

func showSelection(ctx context.Context, out io.Writer, controller *search.Controller, view *channelView, row int) error {
	last, err := controller.SelectBusiness(row)
	if err != nil {
		return err
	}

	business, err := await(ctx, view, view.business)
	if err != nil {
		return fmt.Errorf("failed to load details: %w", err)
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := printBusiness(out, business); err != nil {
		return err
	}

	reviews, err := await(ctx, view, view.reviews)
	if err != nil {
		return fmt.Errorf("failed to load reviews: %w", err)
	}
	if err := printReviews(out, reviews); err != nil {
		return err
	}
	return last.Wait(ctx)
}

func newBusinessCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "business <id>",
		Short: "Show details and reviews of one business",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				return runBusiness(ctx, a, args[0], opts.traceWriter())
			})
		},
	}
}

// runBusiness fetches one business and then runs the details and reviews
// operations on the queue.
func runBusiness(ctx context.Context, a *app, id string, trace io.Writer) error {
	account, err := a.account(ctx)
	if err != nil {
		return err
	}
	client := a.client(account)

	business, err := client.BusinessByIDSync(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch business %s: %w", id, err)
	}

	queue := a.newQueue(task.InlineDispatcher{}, trace)
	defer queue.Stop()

	details, reviews := task.NewDetailsThenReviews(business, client)
	if err := queue.Add(details, reviews); err != nil {
		return err
	}
	if err := reviews.Wait(ctx); err != nil {
		return err
	}
	if err := errors.Join(details.Err(), reviews.Err()); err != nil {
		return err
	}

	if err := printBusiness(a.out, business); err != nil {
		return err
	}
	return printReviews(a.out, business.Reviews)
}
