package evalsvc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bigdataia/gaia-etl/internal/dbstore"
	"github.com/bigdataia/gaia-etl/internal/extract"
)

// writeStoreError maps store failures onto the service's status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dbstore.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
	case errors.Is(err, dbstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		s.log.Error().Err(err).Msg("Store operation failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListTaskIDs(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_ids": ids,
		"count":    len(ids),
	})
}

func (s *Server) handleLoadPrompt(w http.ResponseWriter, r *http.Request) {
	feature, err := s.store.GetFeature(r.Context(), r.PathValue("task_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":      feature.TaskID,
		"dataset_type": feature.DatasetType,
		"question":     feature.Question,
		"level":        feature.Level,
		"final_answer": feature.FinalAnswer,
		"file_name":    feature.FileName,
		"file_path":    feature.FilePath,
	})
}

func (s *Server) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	annotation, err := s.store.GetAnnotation(r.Context(), r.PathValue("task_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":         annotation.TaskID,
		"steps":           annotation.Steps,
		"number_of_steps": annotation.NumberOfSteps,
		"time_taken":      annotation.TimeTaken,
		"tools":           annotation.Tools,
		"number_of_tools": annotation.NumberOfTools,
	})
}

type queryGPTRequest struct {
	TaskID            string `json:"task_id"`
	UpdatedSteps      string `json:"updated_steps"`
	ExtractionService string `json:"extraction_service"`
}

func (s *Server) handleQueryGPT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryGPTRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	backend := req.ExtractionService
	if backend == "" {
		backend = extract.BackendLocal
	}

	feature, err := s.store.GetFeature(ctx, req.TaskID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	fullQuestion := buildQuestion(feature.Question, feature.FinalAnswer, req.UpdatedSteps)

	// Attach the extracted page text when the task references a PDF. A
	// document missing from the backend's tables is a hole to skip, not an
	// error.
	attachment := ""
	if strings.HasSuffix(strings.ToLower(feature.FileName), ".pdf") {
		documentID := strings.TrimSuffix(feature.FileName, ".pdf")
		text, err := s.store.PageText(ctx, backend, documentID)
		switch {
		case err == nil:
			attachment = text
		case errors.Is(err, dbstore.ErrNotFound):
			s.log.Warn().
				Str("task", req.TaskID).
				Str("backend", backend).
				Msg("No extracted content for task file")
		default:
			s.writeStoreError(w, err)
			return
		}
	}

	user := fullQuestion
	if attachment != "" {
		user += "\n\nHere's the content of the file related to the question:\n\n" + attachment
	}

	promptTokens := estimateTokens(systemPrompt) + estimateTokens(user)
	attachmentTokens := estimateTokens(attachment)
	cost := round4(float64(promptTokens) * costPerToken)

	start := time.Now()
	answer, err := s.llm.Generate(ctx, systemPrompt, user)
	if err != nil {
		s.log.Error().Err(err).Str("task", req.TaskID).Msg("Model call failed")
		writeError(w, http.StatusInternalServerError, "Could not send prompt to the model")
		return
	}
	elapsed := time.Since(start).Seconds()

	rec := &dbstore.AnalyticsRecord{
		UserID:              userIDFrom(ctx),
		TaskID:              feature.TaskID,
		UpdatedSteps:        req.UpdatedSteps,
		TokensPerTextPrompt: promptTokens,
		TokensPerAttachment: attachmentTokens,
		GPTResponse:         answer,
		TotalCost:           cost,
		TimeConsumed:        elapsed,
		ExtractionService:   backend,
	}
	analyticsID, err := s.store.InsertAnalytics(ctx, rec)
	if err != nil {
		// The evaluation already happened; losing the analytics row is
		// logged, not surfaced.
		s.log.Error().Err(err).Str("task", req.TaskID).Msg("Failed to record analytics")
	}

	resp := map[string]interface{}{
		"task_id":      feature.TaskID,
		"question":     fullQuestion,
		"level":        feature.Level,
		"final_answer": feature.FinalAnswer,
		"file_name":    feature.FileName,
		"token_count":  promptTokens,
		"file_tokens":  attachmentTokens,
		"total_cost":   cost,
		"gpt_response": answer,
		"analytics_id": analyticsID,
	}
	if annotation, err := s.store.GetAnnotation(ctx, feature.TaskID); err == nil {
		resp["annotation_steps"] = annotation.Steps
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnalyticsID int64  `json:"analytics_id"`
		Feedback    string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.store.SetFeedback(r.Context(), req.AnalyticsID, req.Feedback); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback saved"})
}

func (s *Server) handleMarkCorrect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnalyticsID int64 `json:"analytics_id"`
		Correct     bool  `json:"correct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.store.MarkCorrect(r.Context(), req.AnalyticsID, req.Correct); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Marked"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAnalytics(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]interface{}{
			"id":                     rec.ID,
			"user_id":                rec.UserID,
			"task_id":                rec.TaskID,
			"updated_steps":          rec.UpdatedSteps,
			"tokens_per_text_prompt": rec.TokensPerTextPrompt,
			"tokens_per_attachment":  rec.TokensPerAttachment,
			"gpt_response":           rec.GPTResponse,
			"total_cost":             rec.TotalCost,
			"time_consumed":          rec.TimeConsumed,
			"feedback":               rec.Feedback,
			"time_stamp":             rec.TimeStamp,
			"extraction_service":     rec.ExtractionService,
			"marked_correct":         rec.MarkedCorrect,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analytics": out,
		"count":     len(out),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("Password hashing failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	userID, err := s.store.CreateUser(r.Context(), &dbstore.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Password:  hash,
	})
	if err != nil {
		if errors.Is(err, dbstore.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		s.log.Error().Err(err).Str("email", req.Email).Msg("Registration failed")
		writeError(w, http.StatusBadRequest, "Could not register user")
		return
	}

	s.issueAndRespond(w, r, userID)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, dbstore.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !checkPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.issueAndRespond(w, r, user.UserID)
}

func (s *Server) issueAndRespond(w http.ResponseWriter, r *http.Request, userID int64) {
	token, err := issueToken(s.jwtSecret, userID)
	if err != nil {
		s.log.Error().Err(err).Msg("Token issue failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := s.store.StoreToken(r.Context(), userID, token); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("Failed to persist token")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"token":   token,
	})
}
