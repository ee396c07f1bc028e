package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"episode-desk/internal/auth"
	"episode-desk/internal/broadcast"
	"episode-desk/internal/catalog"
	"episode-desk/internal/config"
	"episode-desk/internal/format"
	"episode-desk/internal/mediaapi"
	"episode-desk/internal/server"
	"episode-desk/internal/shownotes"
)

type deps struct {
	site     config.Site
	location *time.Location
	catalog  *catalog.Catalog
}

func setup(logger zerolog.Logger, watch bool) (*deps, error) {
	site, err := config.ResolveSite()
	if err != nil {
		return nil, fmt.Errorf("resolve site: %w", err)
	}

	loc, err := site.Location()
	if err != nil {
		return nil, err
	}

	cacheDir, err := config.ResolveCacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	mediaDir, _, err := config.ResolveMediaDir()
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}

	client, err := mediaapi.New(config.APIBase(), site.Subdomain, nil, logger.With().Str("component", "mediaapi").Logger())
	if err != nil {
		return nil, err
	}

	resolver := broadcast.NewResolver(loc, broadcast.LocaleFor(site.Language), time.Now)
	cat := catalog.New(client, resolver, catalog.Options{
		CacheDir:   cacheDir,
		WriteCache: config.CacheWrite(),
		MediaDir:   mediaDir,
		Watch:      watch,
		Debounce:   config.RefreshDebounce(),
	}, logger.With().Str("component", "catalog").Logger())

	return &deps{site: site, location: loc, catalog: cat}, nil
}

func newServeCommand(logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the episode API and RSS feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := config.ListenAddr()
			if err := config.ValidateListenAddr(listenAddr); err != nil {
				return fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
			}

			rt, err := setup(*logger, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := rt.catalog.Load(ctx); err != nil {
				return fmt.Errorf("load episodes: %w", err)
			}
			defer func() {
				if err := rt.catalog.Close(); err != nil {
					logger.Warn().Err(err).Msg("error closing catalog")
				}
			}()

			tokenFile, tokensEnabled, err := config.ResolveTokenFile()
			if err != nil {
				return fmt.Errorf("resolve token file: %w", err)
			}

			var validator server.TokenValidator
			if tokensEnabled {
				tokenStore, err := auth.NewTokenStore(tokenFile, config.RefreshDebounce(), logger.With().Str("component", "auth").Logger())
				if err != nil {
					return fmt.Errorf("initialise token store: %w", err)
				}
				defer func() {
					if err := tokenStore.Close(); err != nil {
						logger.Warn().Err(err).Msg("error closing token store")
					}
				}()
				logger.Info().Str("file", tokenFile).Int("tokens", tokenStore.Len()).Msg("token auth enabled")
				validator = tokenStore
			}

			handler := server.New(rt.catalog, validator, server.SiteInfo{
				Title:    rt.site.Title,
				Language: rt.site.Language,
				Location: rt.location,
			}, logger.With().Str("component", "http").Logger())

			httpServer := &http.Server{
				Addr:              listenAddr,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("graceful shutdown error")
				}
			}()

			logger.Info().Str("addr", listenAddr).Str("subdomain", rt.site.Subdomain).Msg("listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}
}

func newRefreshCommand(logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every episode from the media API and rewrite the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(*logger, false)
			if err != nil {
				return err
			}
			if err := rt.catalog.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d episodes cached in %s\n", len(rt.catalog.Episodes()), rt.catalog.CachePath())
			return nil
		},
	}
}

func newNextCommand(logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the next episode and its broadcast state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(*logger, false)
			if err != nil {
				return err
			}
			if err := rt.catalog.Load(cmd.Context()); err != nil {
				return err
			}

			next := rt.catalog.Next()
			out := cmd.OutOrStdout()
			title := next.Number
			if next.Episode != nil {
				title = format.Title(format.TitleSite, next.Episode.Slug, next.Episode.Title, rt.site.Title)
			}
			fmt.Fprintf(out, "%s\t%s", title, next.State)
			if next.Live != "" {
				fmt.Fprintf(out, "\t%s", next.Live)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newAnnotateCommand(logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate <episode> <shownotes.html|->",
		Short: "Prefix shownote chapter headings with their start offsets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(*logger, false)
			if err != nil {
				return err
			}
			if err := rt.catalog.Load(cmd.Context()); err != nil {
				return err
			}

			ep, err := rt.catalog.Episode(args[0])
			if err != nil {
				return fmt.Errorf("episode %s: %w", args[0], err)
			}

			var markup []byte
			if args[1] == "-" {
				markup, err = io.ReadAll(cmd.InOrStdin())
			} else {
				markup, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("read shownotes: %w", err)
			}

			annotated, unmatched := shownotes.AnnotateReport(string(markup), ep.Chapters)
			if len(unmatched) > 0 {
				logger.Warn().Strs("chapters", unmatched).Str("episode", ep.Slug).Msg("chapters without heading")
				if near, err := shownotes.NearMisses(string(markup), unmatched); err == nil && len(near) > 0 {
					logger.Warn().Strs("chapters", near).Msg("headings must be bare <h3> with the exact chapter title")
				}
			}

			_, err = io.WriteString(cmd.OutOrStdout(), annotated)
			return err
		},
	}
}
