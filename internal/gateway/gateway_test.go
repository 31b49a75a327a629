package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flightfinder-eu/flightbot/internal/model"
	"github.com/flightfinder-eu/flightbot/internal/service"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
)

type stubInterpreter struct {
	intent model.TravelIntent
	err    error
	calls  int
}

func (s *stubInterpreter) Interpret(context.Context, string) (model.TravelIntent, error) {
	s.calls++
	return s.intent, s.err
}

type stubFetcher struct {
	offers []model.FlightOffer
	err    error
	panic  bool
	calls  int
}

func (s *stubFetcher) Fetch(context.Context, model.TravelIntent) ([]model.FlightOffer, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	return s.offers, s.err
}

type stubPresenter struct {
	text  string
	err   error
	calls int
	got   []model.FlightOffer
}

func (s *stubPresenter) Present(_ context.Context, _ model.TravelIntent, offers []model.FlightOffer) (string, error) {
	s.calls++
	s.got = offers
	return s.text, s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SearchEvent
}

func (p *recordingPublisher) PublishSearchEvent(_ context.Context, e model.SearchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// failingReplier fails every send after the first n.
type failingReplier struct {
	Collector
	n int
}

func (f *failingReplier) Send(ctx context.Context, r Reply) error {
	if len(f.Replies()) >= f.n {
		return errors.New("chat unavailable")
	}
	return f.Collector.Send(ctx, r)
}

func testIntent(t *testing.T) model.TravelIntent {
	t.Helper()
	intent, err := model.NewTravelIntent("WAW", "BCN", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return intent
}

func testOffers(t *testing.T, prices ...string) []model.FlightOffer {
	t.Helper()
	var out []model.FlightOffer
	for _, p := range prices {
		o, err := model.NewFlightOffer(decimal.RequireFromString(p), "EUR", "PT2H", nil)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, o)
	}
	return out
}

func inbound(text string) Inbound {
	return Inbound{Transport: "test", UserID: "42", Text: text}
}

func TestHandleTextAnswered(t *testing.T) {
	interp := &stubInterpreter{intent: testIntent(t)}
	fetch := &stubFetcher{offers: testOffers(t, "10", "20")}
	present := &stubPresenter{text: "*Best:* 10 EUR"}
	pub := &recordingPublisher{}
	g := New(interp, fetch, present, pub, logger.Nop())

	var c Collector
	event := g.HandleText(context.Background(), inbound("Warsaw to Barcelona"), &c)

	texts := c.Texts()
	if len(texts) != 3 {
		t.Fatalf("got %d replies, want 3: %q", len(texts), texts)
	}
	if texts[0] != searchingText {
		t.Errorf("first reply = %q", texts[0])
	}
	if !strings.Contains(texts[1], "From: *WAW*") || !strings.Contains(texts[1], flexibleDateText) {
		t.Errorf("confirmation = %q", texts[1])
	}
	if texts[2] != "*Best:* 10 EUR" || !c.Replies()[2].Markdown {
		t.Errorf("summary reply = %+v", c.Replies()[2])
	}

	if event.Outcome != model.OutcomeAnswered || event.OfferCount != 2 || event.Origin != "WAW" {
		t.Errorf("event = %+v", event)
	}
	if event.RequestID == "" {
		t.Error("event has no request id")
	}
	if len(pub.events) != 1 || pub.events[0].RequestID != event.RequestID {
		t.Errorf("published events = %+v", pub.events)
	}
}

func TestHandleTextNotUnderstood(t *testing.T) {
	interp := &stubInterpreter{err: &service.Failure{Stage: service.StageInterpret, Reason: service.ReasonMissingLocation}}
	fetch := &stubFetcher{}
	present := &stubPresenter{}
	g := New(interp, fetch, present, nil, logger.Nop())

	var c Collector
	event := g.HandleText(context.Background(), inbound("cheap flights please"), &c)

	if fetch.calls != 0 || present.calls != 0 {
		t.Errorf("fetch calls = %d, present calls = %d, want 0", fetch.calls, present.calls)
	}
	texts := c.Texts()
	if len(texts) != 2 || texts[1] != notUnderstoodText {
		t.Errorf("replies = %q", texts)
	}
	if event.Outcome != model.OutcomeNotUnderstood || event.Reason != string(service.ReasonMissingLocation) {
		t.Errorf("event = %+v", event)
	}
}

func TestHandleTextNoFlights(t *testing.T) {
	tests := []struct {
		name       string
		fetcher    *stubFetcher
		wantReason string
	}{
		{name: "empty result", fetcher: &stubFetcher{offers: []model.FlightOffer{}}},
		{
			name: "provider rejected credentials",
			fetcher: &stubFetcher{
				offers: []model.FlightOffer{},
				err:    &service.Failure{Stage: service.StageFetch, Reason: service.ReasonProviderFailed},
			},
			wantReason: string(service.ReasonProviderFailed),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			present := &stubPresenter{}
			g := New(&stubInterpreter{intent: testIntent(t)}, tt.fetcher, present, nil, logger.Nop())

			var c Collector
			event := g.HandleText(context.Background(), inbound("WAW BCN"), &c)

			if present.calls != 0 {
				t.Errorf("presenter called %d times", present.calls)
			}
			texts := c.Texts()
			if texts[len(texts)-1] != noFlightsText {
				t.Errorf("last reply = %q", texts[len(texts)-1])
			}
			for _, txt := range texts {
				if txt == genericErrorText {
					t.Error("generic error reply sent")
				}
			}
			if event.Outcome != model.OutcomeNoFlights || event.Reason != tt.wantReason {
				t.Errorf("event = %+v", event)
			}
		})
	}
}

func TestHandleTextPresenterFailureStillAnswers(t *testing.T) {
	present := &stubPresenter{
		text: "❌ Formatting error: overloaded",
		err:  &service.Failure{Stage: service.StagePresent, Reason: service.ReasonPresentationFailed},
	}
	g := New(&stubInterpreter{intent: testIntent(t)}, &stubFetcher{offers: testOffers(t, "10")}, present, nil, logger.Nop())

	var c Collector
	event := g.HandleText(context.Background(), inbound("WAW BCN"), &c)

	replies := c.Replies()
	last := replies[len(replies)-1]
	if last.Text != present.text || last.Markdown {
		t.Errorf("last reply = %+v", last)
	}
	if event.Outcome != model.OutcomeAnswered || event.Reason != string(service.ReasonPresentationFailed) {
		t.Errorf("event = %+v", event)
	}
}

func TestHandleTextRecoversPanic(t *testing.T) {
	g := New(&stubInterpreter{intent: testIntent(t)}, &stubFetcher{panic: true}, &stubPresenter{}, nil, logger.Nop())

	var c Collector
	event := g.HandleText(context.Background(), inbound("WAW BCN"), &c)

	texts := c.Texts()
	if texts[len(texts)-1] != genericErrorText {
		t.Errorf("last reply = %q", texts[len(texts)-1])
	}
	if event.Outcome != model.OutcomeError || event.Reason != string(service.ReasonInternal) {
		t.Errorf("event = %+v", event)
	}
}

func TestHandleTextReplyFailure(t *testing.T) {
	g := New(&stubInterpreter{intent: testIntent(t)}, &stubFetcher{offers: testOffers(t, "10")}, &stubPresenter{text: "ok"}, nil, logger.Nop())

	r := &failingReplier{n: 1}
	event := g.HandleText(context.Background(), inbound("WAW BCN"), r)

	if event.Outcome != model.OutcomeError {
		t.Errorf("outcome = %q, want %q", event.Outcome, model.OutcomeError)
	}
	if got := r.Texts(); len(got) != 1 || got[0] != searchingText {
		t.Errorf("replies = %q", got)
	}
}

func TestHandleTextCommands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "/start", want: welcomeText},
		{text: "/help", want: helpText},
		{text: "/HELP@flightfinder_bot", want: helpText},
		{text: "/unknown", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			interp := &stubInterpreter{}
			g := New(interp, &stubFetcher{}, &stubPresenter{}, nil, logger.Nop())

			var c Collector
			event := g.HandleText(context.Background(), inbound(tt.text), &c)

			if interp.calls != 0 {
				t.Error("command reached the interpreter")
			}
			if event.Outcome != model.OutcomeCommand {
				t.Errorf("outcome = %q", event.Outcome)
			}
			texts := c.Texts()
			if tt.want == "" {
				if len(texts) != 0 {
					t.Errorf("replies = %q, want none", texts)
				}
				return
			}
			if len(texts) != 1 || texts[0] != tt.want {
				t.Errorf("replies = %q", texts)
			}
		})
	}
}

func TestUnderstoodTextEscapesMarkdown(t *testing.T) {
	intent, err := model.NewTravelIntent("SAN_JOSE", "B*N", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := understoodText(intent)
	if !strings.Contains(got, `SAN\_JOSE`) || !strings.Contains(got, `B\*N`) {
		t.Errorf("understoodText = %q", got)
	}
}
