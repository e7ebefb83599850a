// Package delivery drains the notification queue through the configured
// channels.
//
// # Contract
//
// The Router resolves each notification to a channel set:
//  1. The realtime channel is always included.
//  2. Other channels are included when the user preferences enable them for
//     the notification's priority tier.
//  3. A notification whose text matches an escalation keyword is routed as
//     if it were high priority. The stored priority is unchanged.
//  4. Channels that are selected but not configured are excluded from
//     sending and recorded with status not_configured.
//
// The Pool runs a fixed number of workers over the queue. A worker sends to
// every resolved channel, retrying only the channels that failed with a
// retryable error on later attempts. When a job reaches a terminal state the
// worker writes exactly one DeliveryRecord.
package delivery
