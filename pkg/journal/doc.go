// Package journal persists one record per connection lifecycle: when it was
// admitted, what protocol it committed to, how many requests it carried and
// how it ended. Records are written asynchronously so the accept path never
// blocks on storage, and a retention pruner keeps the backlog bounded.
package journal
