package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/persistence/displaycache"
	"alloyforge.ai/internal/protocol"
	"alloyforge.ai/internal/recipe/jsoncodec"
	"alloyforge.ai/internal/transport/ws"
)

func (s *server) routes(syncSrv *ws.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/sync", syncSrv.Handler())
	mux.HandleFunc("GET /v1/recipes", s.handleRecipeList)
	mux.HandleFunc("GET /v1/recipes/{id...}", s.handleRecipe)
	mux.HandleFunc("GET /v1/displays", s.handleDisplayList)
	mux.HandleFunc("GET /v1/displays/{id...}", s.handleDisplay)
	mux.HandleFunc("POST /admin/v1/reload", s.handleReload)
	return mux
}

func (s *server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := s.state()

	fmt.Fprintf(rw, "# HELP alloyforge_recipes Loaded recipes by kind.\n")
	fmt.Fprintf(rw, "# TYPE alloyforge_recipes gauge\n")
	fmt.Fprintf(rw, "alloyforge_recipes{kind=%q} %d\n", "alloy_forge", len(st.cats.Alloys.ByID))
	fmt.Fprintf(rw, "alloyforge_recipes{kind=%q} %d\n", "smelting", len(st.cats.Smelting.ByID))

	fmt.Fprintf(rw, "# HELP alloyforge_items Registered items.\n")
	fmt.Fprintf(rw, "# TYPE alloyforge_items gauge\n")
	fmt.Fprintf(rw, "alloyforge_items %d\n", len(st.cats.Registry.Palette))

	fmt.Fprintf(rw, "# HELP alloyforge_sync_sessions_total Recipe sync sessions started.\n")
	fmt.Fprintf(rw, "# TYPE alloyforge_sync_sessions_total counter\n")
	fmt.Fprintf(rw, "alloyforge_sync_sessions_total %d\n", s.sessions.Load())
}

func (s *server) handleRecipeList(rw http.ResponseWriter, r *http.Request) {
	st := s.state()
	ids := make([]string, 0, len(st.cats.Alloys.ByID))
	for _, rec := range st.cats.Recipes() {
		ids = append(ids, rec.ID())
	}
	writeJSON(rw, http.StatusOK, map[string]any{"digest": st.digest, "ids": ids})
}

func (s *server) handleRecipe(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.state().cats.Alloys.ByID[id]
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no recipe "+id)
		return
	}
	b, err := jsoncodec.Marshal(rec)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(b)
}

func (s *server) handleDisplayList(rw http.ResponseWriter, r *http.Request) {
	st := s.state()
	writeJSON(rw, http.StatusOK, map[string]any{"digest": st.digest, "ids": st.ids})
}

// handleDisplay serves the tag form of one projection, from the display
// cache when it holds the current digest.
func (s *server) handleDisplay(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "missing id")
		return
	}
	st := s.state()

	p, ok := st.projections[id]
	source := "catalogs"
	if s.cache != nil {
		e, err := s.cache.Get(r.Context(), id)
		switch {
		case err == nil && e.Digest == st.digest:
			p, ok, source = e.Projection, true, "cache"
		case err != nil && !errors.Is(err, displaycache.ErrNotFound):
			s.logger.Printf("display cache: get %s: %v", id, err)
		}
	}
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no display "+id)
		return
	}
	b, err := display.Encode(p)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("X-Display-Source", source)
	_, _ = rw.Write(b)
}

func (s *server) handleReload(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		writeError(rw, http.StatusForbidden, protocol.ErrBadRequest, "forbidden")
		return
	}
	changed, err := s.reload(r.Context())
	if err != nil {
		s.logger.Printf("reload: %v", err)
		writeError(rw, http.StatusUnprocessableEntity, protocol.ErrBadRequest, err.Error())
		return
	}
	st := s.state()
	s.logger.Printf("reload: changed=%v digest=%s", changed, st.digest)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "changed": changed, "digest": st.digest})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.NewError(code, msg))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
