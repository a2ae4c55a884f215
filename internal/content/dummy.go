package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/chrissnell/moonshade/pkg/solar"
)

var (
	triviaTemplates = []string{
		"{Name} is a notable point in the lunar cycle. The Moon is Earth's only natural satellite and circles us about every 27.3 days.",
		"At {age} days old, the Moon shows this face because of where the Sun, Earth and Moon sit relative to one another.",
		"Many cultures have attached special meaning to {name} since long before calendars were written down.",
	}
	messageTemplates = []string{
		"{Name} is a good time to begin something new. Take the day slowly and notice the light around you.",
		"Today brings {name}. Make a little room to settle your thoughts and listen to yourself.",
		"The energy of {name} favours steady, positive change. Make the most of the day.",
	}
	observationTemplates = []string{
		"{Name} is easy to find in the night sky. If the weather is clear, step outside and look up.",
		"The Moon is best observed after sunset or before dawn. Binoculars will show far more detail.",
		"Tonight the Moon is {age} days old. On a clear night you may make out the patterns of its surface.",
	}
)

// DummyGenerator produces canned texts. The choice of template is a pure
// function of the date so a given day always reads the same.
type DummyGenerator struct {
	// Now stamps GeneratedAt; time.Now when nil
	Now func() time.Time
}

// Generate implements Generator.
func (d DummyGenerator) Generate(_ context.Context, req Request) (Content, error) {
	// {Name} opens a sentence, {name} sits inside one
	name, title := req.PhaseName, req.PhaseName
	if name == "" {
		name, title = "this moon", "This moon"
	}

	h := fnv.New32a()
	h.Write([]byte(req.Date))
	sum := h.Sum32()

	r := strings.NewReplacer("{Name}", title, "{name}", name, "{age}", fmt.Sprintf("%.1f", req.MoonAge))
	pick := func(templates []string, salt uint32) string {
		return r.Replace(templates[(sum+salt)%uint32(len(templates))])
	}

	c := Content{
		Trivia:      pick(triviaTemplates, 0),
		Message:     pick(messageTemplates, 1),
		Observation: pick(observationTemplates, 2),
		Source:      SourceDummy,
	}
	if !req.Sunset.IsZero() {
		c.Observation += fmt.Sprintf(" The Sun sets at %s UTC.", solar.FormatSunTime(req.Sunset, time.UTC))
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	c.GeneratedAt = now().UTC()
	return c, nil
}
