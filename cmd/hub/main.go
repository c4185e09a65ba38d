// Command hub runs a single hub node: a per-user CRDT message store with
// merkle-trie-backed sync and on-chain identity ingestion, reachable over
// a libp2p gossip topic and a JSON rpc surface. Wiring follows the
// teacher's cmd/scaffold.go component order — logger, then store, then
// engines, then network-facing surfaces — generalized from a single-process
// consensus node to this core's engine graph.
package main

func main() {
	Execute()
}
