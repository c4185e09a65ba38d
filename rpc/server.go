// Package rpc exposes the hub's read/write surface (§6): read-only getters
// over the typed stores, message and IdRegistry event submission, and the
// sync helpers a peer's syncengine.Peer implementation calls against this
// replica. Grounded on the teacher's engine/access/rest/rest_api_server.go
// gorilla/mux wiring for the JSON surface, and its grpc.NewServer health
// registration for the service-mesh-facing health check — the full
// protobuf/flatbuffer request schema this sits behind is explicitly out of
// scope (§1 Non-goals), so requests here are hand-decoded JSON rather than
// generated stubs.
package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sagar-a16z/hub/engine"
	"github.com/sagar-a16z/hub/identity"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
	"github.com/sagar-a16z/hub/store"
	"github.com/sagar-a16z/hub/syncengine"
	"github.com/sagar-a16z/hub/trie"
)

// messageDTO carries a model.Message across the JSON surface by reusing
// storage's msgpack row codec for the payload — model.Message.Body is an
// interface, which encoding/json cannot round-trip on its own, and this
// core has no generated schema to decode into (§1 Non-goals).
type messageDTO struct {
	Encoded []byte `json:"encoded"`
}

func encodeMessageDTO(msg *model.Message) (messageDTO, error) {
	raw, err := storage.EncodeMessage(msg)
	if err != nil {
		return messageDTO{}, err
	}
	return messageDTO{Encoded: raw}, nil
}

func writeMessageJSON(w http.ResponseWriter, msg *model.Message) {
	dto, err := encodeMessageDTO(msg)
	if err != nil {
		writeError(w, model.WrapUnknown(err))
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func writeMessagesJSON(w http.ResponseWriter, msgs []*model.Message) {
	dtos := make([]messageDTO, 0, len(msgs))
	for _, msg := range msgs {
		dto, err := encodeMessageDTO(msg)
		if err != nil {
			writeError(w, model.WrapUnknown(err))
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

type Server struct {
	registry   *store.Registry
	identity   *identity.Store
	engine     *engine.Engine
	syncEngine *syncengine.Engine
	log        zerolog.Logger
}

func NewServer(registry *store.Registry, idStore *identity.Store, eng *engine.Engine, se *syncengine.Engine, log zerolog.Logger) *Server {
	return &Server{registry: registry, identity: idStore, engine: eng, syncEngine: se, log: log.With().Str("component", "rpc").Logger()}
}

// requestID tags every inbound request with a random correlation id, logged
// alongside the request path and echoed back as a response header — the
// same per-call tracing id pattern the teacher's hotstuff telemetry uses for
// its path_id, narrowed here to one id per HTTP request rather than per
// consensus event.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		s.log.Debug().Str("request_id", id).Str("method", r.Method).Str("path", r.URL.Path).Msg("handling request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) HTTPHandler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(s.requestID)
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/casts/{fid}/{tsHash}", s.getCast).Methods("GET")
	v1.HandleFunc("/castsByFid/{fid}", s.getCastsByFid).Methods("GET")
	v1.HandleFunc("/signersByFid/{fid}", s.getSignersByFid).Methods("GET")
	v1.HandleFunc("/userDataByFid/{fid}", s.getUserDataByFid).Methods("GET")
	v1.HandleFunc("/verificationsByFid/{fid}", s.getVerificationsByFid).Methods("GET")
	v1.HandleFunc("/custodyEvent/{fid}", s.getCustodyEvent).Methods("GET")
	v1.HandleFunc("/messages", s.submitMessage).Methods("POST")
	v1.HandleFunc("/idRegistryEvents", s.submitIdRegistryEvent).Methods("POST")
	v1.HandleFunc("/fids", s.getFids).Methods("GET")

	v1.HandleFunc("/sync/rootHash", s.getRootHash).Methods("GET")
	v1.HandleFunc("/sync/trieNodeMetadata/", s.getTrieNodeMetadata).Methods("GET")
	v1.HandleFunc("/sync/trieNodeMetadata/{prefix}", s.getTrieNodeMetadata).Methods("GET")
	v1.HandleFunc("/sync/syncIdsByPrefix/", s.getAllSyncIdsByPrefix).Methods("GET")
	v1.HandleFunc("/sync/syncIdsByPrefix/{prefix}", s.getAllSyncIdsByPrefix).Methods("GET")
	v1.HandleFunc("/sync/messagesBySyncIds", s.getAllMessagesBySyncIds).Methods("POST")
	v1.HandleFunc("/sync/stats", s.getSyncStats).Methods("GET")

	return r
}

// NewHTTPServer wraps HTTPHandler in an *http.Server with the teacher's
// fixed request/idle timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.HTTPHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewGRPCHealthServer returns a bare grpc.Server exposing only the
// standard health-checking service; cmd/hub sets it SERVING once startup
// wiring is complete. A full RPC service definition is out of scope (§1).
func NewGRPCHealthServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

func ListenGRPC(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	he, ok := err.(*model.HubError)
	if !ok {
		he = model.WrapUnknown(err)
	}
	status := http.StatusInternalServerError
	switch he.Code {
	case model.CodeNotFound:
		status = http.StatusNotFound
	case model.CodeValidationFailure, model.CodeParseFailure, model.CodeInvalidParam, model.CodeConflict:
		status = http.StatusBadRequest
	case model.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"code": string(he.Code), "message": he.Message})
}

func fidParam(r *http.Request) model.Fid {
	return model.FidFromBytes([]byte(mux.Vars(r)["fid"]))
}

func hexParam(r *http.Request, name string) ([]byte, error) {
	return hex.DecodeString(mux.Vars(r)[name])
}

func (s *Server) getCast(w http.ResponseWriter, r *http.Request) {
	tsHash, err := hexParam(r, "tsHash")
	if err != nil {
		writeError(w, model.ErrInvalidParam("tsHash is not valid hex"))
		return
	}
	msg, err := s.registry.Cast.GetCastAdd(fidParam(r), tsHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessageJSON(w, msg)
}

func (s *Server) getCastsByFid(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.registry.Cast.GetAllByFid(fidParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessagesJSON(w, msgs)
}

func (s *Server) getSignersByFid(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.registry.Signer.GetAllByFid(fidParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessagesJSON(w, msgs)
}

func (s *Server) getUserDataByFid(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.registry.UserData.GetAllByFid(fidParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessagesJSON(w, msgs)
}

func (s *Server) getVerificationsByFid(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.registry.Verification.GetAllByFid(fidParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessagesJSON(w, msgs)
}

// custodyEventDTO wraps an IdRegistryEvent with the checksum-cased rendering
// of its custody address, for clients that want to display it directly.
type custodyEventDTO struct {
	*model.IdRegistryEvent
	ToChecksum string `json:"toChecksum"`
}

func (s *Server) getCustodyEvent(w http.ResponseWriter, r *http.Request) {
	evt, err := s.identity.Current(fidParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, custodyEventDTO{IdRegistryEvent: evt, ToChecksum: identity.CustodyAddressHex(evt.To)})
}

func (s *Server) submitMessage(w http.ResponseWriter, r *http.Request) {
	var dto messageDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, model.ErrParseFailure("could not decode message body: %v", err))
		return
	}
	msg, err := storage.DecodeMessage(dto.Encoded)
	if err != nil {
		writeError(w, model.ErrParseFailure("could not decode message: %v", err))
		return
	}
	if err := s.engine.Submit(msg); err != nil {
		writeError(w, err)
		return
	}
	writeMessageJSON(w, msg)
}

func (s *Server) submitIdRegistryEvent(w http.ResponseWriter, r *http.Request) {
	var evt model.IdRegistryEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, model.ErrParseFailure("could not decode id registry event body: %v", err))
		return
	}
	if err := s.engine.SubmitIdRegistryEvent(&evt); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// getFids returns every fid with a current IdRegistry event.
func (s *Server) getFids(w http.ResponseWriter, r *http.Request) {
	fids, err := s.identity.AllFids()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fids)
}

// getSyncStats reports the last completed (or failed) reconciliation, for
// operational visibility into this replica's sync health.
func (s *Server) getSyncStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.syncEngine.Stats())
}

func (s *Server) getRootHash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"rootHash": hex.EncodeToString(s.syncEngine.RootHash())})
}

func (s *Server) getTrieNodeMetadata(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	md := s.syncEngine.Trie().GetTrieNodeMetadata(prefix)
	if md == nil {
		writeError(w, model.ErrNotFound("no trie node for prefix %q", prefix))
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) getAllSyncIdsByPrefix(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	md := s.syncEngine.Trie().GetTrieNodeMetadata(prefix)
	if md == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	writeJSON(w, http.StatusOK, collectSyncIDs(s.syncEngine.Trie(), prefix))
}

// collectSyncIDs walks every leaf in the subtree rooted at prefix by
// descending through getTrieNodeMetadata one level at a time; it is O(ids
// in subtree), appropriate for the bounded-size subtrees syncengine asks
// for once it has narrowed down to a small divergent prefix.
func collectSyncIDs(t *trie.Trie, prefix string) []string {
	md := t.GetTrieNodeMetadata(prefix)
	if md == nil {
		return nil
	}
	if len(md.Children) == 0 {
		if t.Exists(prefix) {
			return []string{prefix}
		}
		return nil
	}
	var out []string
	for _, c := range md.Children {
		out = append(out, collectSyncIDs(t, c.Prefix)...)
	}
	return out
}

func (s *Server) getAllMessagesBySyncIds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fid     model.Fid `json:"fid"`
		SyncIds []string  `json:"syncIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrParseFailure("could not decode request body: %v", err))
		return
	}
	wanted := make(map[string]bool, len(req.SyncIds))
	for _, id := range req.SyncIds {
		if tsHash, err := tsHashFromSyncID(id); err == nil {
			wanted[string(tsHash)] = true
		}
	}
	// A sync id does not name its fid, so without one every fid is searched.
	fids := []model.Fid{req.Fid}
	if req.Fid == "" {
		var err error
		if fids, err = s.identity.AllFids(); err != nil {
			writeError(w, err)
			return
		}
	}
	var out []*model.Message
	for _, fid := range fids {
		all, err := s.registry.AllMessagesByFid(fid)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, m := range all {
			if wanted[string(m.TsHash())] {
				out = append(out, m)
			}
		}
	}
	writeMessagesJSON(w, out)
}

func tsHashFromSyncID(id string) ([]byte, error) {
	if len(id) < 10 {
		return nil, model.ErrInvalidParam("sync id too short")
	}
	return hex.DecodeString(id[10:])
}
