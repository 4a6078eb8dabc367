package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UpdatesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_updates_fetched_total",
		Help: "Total Telegram updates returned by getUpdates.",
	})
	MessagesIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_ingested_total",
		Help: "Total inbound messages newly stored.",
	})
	DuplicatesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_duplicates_suppressed_total",
		Help: "Total updates skipped because their update id was already stored.",
	})
	EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_events_published_total",
		Help: "Total message-received events published to the broker.",
	})
	PublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_publish_failures_total",
		Help: "Total publish attempts that failed and aborted a batch.",
	})
	SyncFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_sync_failures_total",
		Help: "Total ingestion runs that ended with an error.",
	})

	EventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_events_consumed_total",
		Help: "Total raw messages received from the broker.",
	})
	EventDecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_event_decode_failures_total",
		Help: "Total broker messages dropped as undecodable.",
	})
	UnknownEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_unknown_events_total",
		Help: "Total events dropped for an unrecognized eventName.",
	})
	DedupeHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_consumer_dedupe_hits_total",
		Help: "Total events suppressed by consumer-side dedupe.",
	})

	RepliesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_replies_sent_total",
		Help: "Total replies sent back to Telegram.",
	})
	ReplyFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_reply_fallbacks_total",
		Help: "Total replies served from the static pool after an AI failure.",
	})
)

func Register() {
	prometheus.MustRegister(
		UpdatesFetched, MessagesIngested, DuplicatesSuppressed,
		EventsPublished, PublishFailures, SyncFailures,
		EventsConsumed, EventDecodeFailures, UnknownEvents, DedupeHits,
		RepliesSent, ReplyFallbacks,
	)
}
