// Package queue holds releases waiting for a download slot.
//
// The Queue is a capacity-bounded FIFO with a deduplication set keyed by
// "dl|{artistId}|{folder}". A key joins the set when an item is accepted and
// leaves it when the item is removed or when the slot that claimed it calls
// Release, so a release can never be queued twice or queued while it is being
// downloaded. Expected refusals (duplicate, capacity, cooldown) are returned
// as EnqueueResult values rather than errors.
//
// Every mutation is published to the event hub on the "queue" topic.
package queue
