package encoders

import (
	"github.com/smazurov/mediagraph/internal/config"
	"github.com/smazurov/mediagraph/internal/media"
)

// ApplyTuning installs the candidate preferences and property overrides of t.
// Codecs absent from t return to their platform default order.
func (s *Selector) ApplyTuning(t config.Tuning) {
	for _, codec := range media.AllCodecs {
		s.query.SetPreference(codec, nil)
	}
	for name, factories := range t.Preference {
		codec, ok := media.ParseCodecType(name)
		if !ok || codec.IsRaw() {
			s.logger.Warn("Ignoring preference for unknown codec", "codec", name)
			continue
		}
		s.query.SetPreference(codec, factories)
	}
	s.SetOverrides(t.Encoders)
	s.logger.Info("Applied encoder tuning", "preferences", len(t.Preference), "overrides", len(t.Encoders))
}

// WatchTuning applies every reload of w. The returned function stops applying.
// Encoders already selected keep the tuning they were created with.
func (s *Selector) WatchTuning(w *config.Watcher[config.Tuning]) func() {
	return w.OnReload(s.ApplyTuning)
}
