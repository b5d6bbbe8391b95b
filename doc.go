// Package lockfree implements lock-free, multi-producer/multi-consumer
// containers: a tagged-pointer primitive, an intrusive Treiber stack built
// on it, and a value-carrying Stack and Michael-Scott Queue composed from
// the intrusive stack plus a node freelist.
//
// None of the containers are wait-free: every operation is a bounded
// compare-and-swap loop that retries under contention, but the system as a
// whole always makes progress. ABA is avoided by packing a 16-bit
// generation tag alongside every 48-bit node address in a single atomic
// word rather than by hazard pointers or epoch reclamation; see
// TaggedPointer.
package lockfree
