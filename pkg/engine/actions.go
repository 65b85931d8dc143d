package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

// Unknown is what face recognition reports for an unmatched face.
const Unknown = "Unknown"

func (e *Engine) navigationStep(ctx context.Context, loc gps.Location) {
	if loc.Err != "" {
		e.say(ctx, "GPS not available.")
		return
	}
	if !loc.Fix {
		e.say(ctx, "Waiting for GPS fix.")
		return
	}
	now := e.now()
	if now.Sub(e.lastLocation) > e.cfg.LocationEvery {
		e.say(ctx, fmt.Sprintf("Location latitude %.5f, longitude %.5f.", loc.Lat, loc.Lon))
		e.lastLocation = now
	}
}

func (e *Engine) readingStep(ctx context.Context) {
	path := e.capture(ctx, e.cfg.ReadImage)

	text, err := e.deps.OCR.ReadText(ctx, path)
	if err != nil {
		e.logger.Warn("ocr failed", "error", err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		e.say(ctx, "No text detected.")
	} else {
		e.say(ctx, text)
	}
	e.record("read", map[string]any{"text": text})
}

func (e *Engine) describeStep(ctx context.Context) {
	path := e.capture(ctx, e.cfg.SceneImage)
	names, objs := e.perceive(ctx, path)

	now := e.now()
	for label, seen := range e.recentObjects {
		if now.Sub(seen) > e.cfg.NoveltyWindow {
			delete(e.recentObjects, label)
		}
	}

	known := KnownPeople(names)
	for _, n := range known {
		e.personaEvent(persona.EventGreet, map[string]any{"name": n})
	}
	labels := TopLabels(objs, 3)
	for _, l := range labels {
		if _, seen := e.recentObjects[l]; !seen {
			e.personaEvent(persona.EventNovelObject, map[string]any{"label": l})
		}
		e.recentObjects[l] = now
	}

	e.say(ctx, DescribeAnnouncement(names, known, labels))

	recognized := names
	if recognized == nil {
		recognized = []string{}
	}
	e.record("describe", map[string]any{"recognized": recognized})
}

func (e *Engine) statusStep(ctx context.Context, env sensors.Environment) {
	e.say(ctx, fmt.Sprintf("Temperature %s Celsius, humidity %s percent.", reading(env.TemperatureC), reading(env.HumidityPct)))
	e.record("status", map[string]any{"env": env})
}

// perceive runs face recognition and object detection side by side.
// Either failing just leaves its result empty.
func (e *Engine) perceive(ctx context.Context, path string) ([]string, []Object) {
	var (
		names []string
		objs  []Object
		g     errgroup.Group
	)
	g.Go(func() error {
		n, err := e.deps.Faces.Recognize(ctx, path)
		if err != nil {
			e.logger.Warn("face recognition failed", "error", err)
			return nil
		}
		names = n
		return nil
	})
	g.Go(func() error {
		o, err := e.deps.Objects.DetectObjects(ctx, path)
		if err != nil {
			e.logger.Warn("object detection failed", "error", err)
			return nil
		}
		objs = o
		return nil
	})
	g.Wait()
	return names, objs
}

// capture returns path even when the camera fails, so perception still
// runs against whatever image is already there.
func (e *Engine) capture(ctx context.Context, path string) string {
	got, err := e.deps.Camera.Capture(ctx, path)
	if err != nil {
		e.logger.Warn("capture failed", "path", path, "error", err)
		return path
	}
	return got
}

// KnownPeople drops Unknown entries and duplicates, keeping first-seen
// order.
func KnownPeople(names []string) []string {
	var out []string
	for _, n := range names {
		if n == "" || n == Unknown || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// TopLabels returns the labels of the n most confident objects, then
// drops "person" since people are announced by name.
func TopLabels(objs []Object, n int) []string {
	sorted := slices.Clone(objs)
	slices.SortStableFunc(sorted, func(a, b Object) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	var labels []string
	for _, o := range sorted {
		if o.Label != "person" {
			labels = append(labels, o.Label)
		}
	}
	return labels
}

// DescribeAnnouncement composes the Describe sentence. names is the raw
// recognizer output, known its named subset.
func DescribeAnnouncement(names, known, labels []string) string {
	switch {
	case len(known) > 0:
		msg := "I can see " + strings.Join(known, ", ")
		if len(labels) > 0 {
			msg += ", and nearby: " + strings.Join(labels, ", ")
		}
		return msg + "."
	case len(names) > 0 && len(labels) > 0:
		return "I don't recognize anyone, but I notice " + strings.Join(labels, ", ") + "."
	case len(names) > 0:
		return "I don't recognize anyone here."
	case len(labels) > 0:
		return "I notice " + strings.Join(labels, ", ") + "."
	default:
		return "Captured an image of the surroundings."
	}
}

func reading(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
