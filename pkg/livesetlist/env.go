package livesetlist

import (
	"context"

	"github.com/himanishpuri/LiveSetlist/internal/config"
	"github.com/himanishpuri/LiveSetlist/internal/prediction"
	"github.com/himanishpuri/LiveSetlist/internal/recognition"
	"github.com/himanishpuri/LiveSetlist/internal/session"
)

// OptionsFromConfig turns loaded settings into service options. Providers
// without credentials are left out: an incomplete ACRCloud configuration
// means no fingerprinter, no Scribe key means no lyric recognition. An audio
// source is not part of the environment and has to be added with WithSource.
func OptionsFromConfig(ctx context.Context, cfg *config.Config, log Logger) []Option {
	opts := []Option{
		WithBackend(cfg.Storage.Backend),
		WithDBPath(cfg.Storage.Path),
		WithMongo(cfg.Storage.MongoURI, cfg.Storage.MongoDB),
		WithTiming(Timing{
			Window:           cfg.Timing.WindowDuration,
			Interval:         cfg.Timing.Interval,
			DegradedInterval: cfg.Timing.DegradedInterval,
			StartupGrace:     cfg.Timing.StartupGrace,
		}),
		WithWeights(weightsFromConfig(cfg.Scoring)),
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	if cfg.Timing.Workers > 0 {
		opts = append(opts, WithWorkers(cfg.Timing.Workers))
	}
	if cfg.Timing.DedupWindow > 0 {
		opts = append(opts, WithDedupWindow(cfg.Timing.DedupWindow))
	}

	rc := cfg.Recognition
	acr := recognition.ACRCloudConfig{
		Host:         rc.Host,
		AccessKey:    rc.AccessKey,
		AccessSecret: rc.AccessSecret,
		Timeout:      rc.Timeout,
	}
	if err := acr.Validate(); err != nil {
		if log != nil {
			log.Warnf("audio fingerprinting disabled: %v", err)
		}
	} else {
		opts = append(opts, WithFingerprinter(recognition.NewACRCloudClient(acr)))
	}

	if tc := cfg.Transcript; tc.APIKey != "" {
		corpus := recognition.NewLyricsCorpus()
		if tc.LyricsDir != "" {
			if err := corpus.LoadDir(tc.LyricsDir); err != nil && log != nil {
				log.Warnf("failed to load lyrics from %s: %v", tc.LyricsDir, err)
			}
		}
		opts = append(opts, WithTranscriber(recognition.NewScribeClient(recognition.ScribeConfig{
			APIKey:   tc.APIKey,
			Language: tc.Language,
			Timeout:  tc.Timeout,
		}), corpus))
		if tc.LyricsURL != "" {
			opts = append(opts, WithLyricsSources(tc.LyricsDir, recognition.NewLyricsOVHSource(tc.LyricsURL, tc.Timeout)))
		}
	}

	cc := cfg.Catalog
	if cc.SetlistFMKey != "" {
		opts = append(opts, WithCatalogSources(prediction.NewSetlistFMSource(cc.SetlistFMKey)))
	}
	// MusicBrainz answers composers first; Spotify only fills missing covers.
	opts = append(opts, WithStrategies(session.NewMusicBrainzStrategy(cc.MusicBrainzAgent)))
	if cc.SpotifyClientID != "" && cc.SpotifyClientSecret != "" {
		client := prediction.NewSpotifyClient(ctx, cc.SpotifyClientID, cc.SpotifyClientSecret)
		opts = append(opts,
			WithCatalogSources(prediction.NewSpotifySource(client)),
			WithStrategies(session.NewSpotifyCoverStrategy(client)),
		)
	}
	return opts
}

func weightsFromConfig(sc config.ScoringConfig) Weights {
	w := recognition.DefaultWeights()
	w.MusicThreshold = sc.MusicThreshold
	w.HummingThreshold = sc.HummingThreshold
	w.WhitelistBoost = sc.WhitelistBoost
	w.ArtistBoost = sc.ArtistBoost
	w.PredictionBoost = sc.PredictionBoost
	w.MergeBonus = sc.MergeBonus
	return w
}
