package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/compiler"
)

// CompileRequest is the body of both compile endpoints
type CompileRequest struct {
	Source          string `json:"source"`
	ReturnSourceMap bool   `json:"returnSourceMap,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}

	res, err := s.compiler.Compile(r.Context(), req.Source, req.ReturnSourceMap)
	s.writeResult(w, res, err)
}

func (s *Server) handleCompileDDC(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}

	res, err := s.compiler.CompileDDC(r.Context(), req.Source)
	s.writeResult(w, res, err)
}

func (s *Server) decodeCompileRequest(w http.ResponseWriter, r *http.Request) (*CompileRequest, bool) {
	var req CompileRequest

	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}

		s.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if strings.TrimSpace(req.Source) == "" {
		s.Error(w, http.StatusBadRequest, "source is required")
		return nil, false
	}

	return &req, true
}

// writeResult maps a compile outcome onto a response. Compilation problems
// are a client error, anything else a server error.
func (s *Server) writeResult(w http.ResponseWriter, res *compiler.Result, err error) {
	if errors.Is(err, compiler.ErrClosed) {
		s.Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if err != nil {
		s.log.Error("Compile failed", zap.Error(err))
		s.Error(w, http.StatusInternalServerError, "internal compiler error")
		return
	}

	if !res.Success() {
		messages := make([]string, 0, len(res.Problems))
		for _, p := range res.Problems {
			messages = append(messages, p.Message)
		}

		s.write(w, http.StatusBadRequest, Response{
			Success: false,
			Data:    res,
			Error:   strings.Join(messages, "\n"),
		})
		return
	}

	s.Success(w, http.StatusOK, res)
}
