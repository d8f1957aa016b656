// Package discovery finds BluOS players on the local network.
//
// Players advertise the "_musc._tcp" service over mDNS. A Scanner browses for
// a bounded window and returns one Candidate per address and port. Watch
// repeats the scan at a fixed interval for bridges that auto-register
// speakers.
package discovery
