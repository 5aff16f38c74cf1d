// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers serves the forum's read-mostly JSON API. Listings come
// straight from the denormalized columns, which is what the engine keeps
// them correct for.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/forum"
	"forumcore/internal/models"
	"forumcore/internal/store"
)

// API groups the JSON endpoints.
type API struct {
	db  *sqlx.DB
	svc *forum.Service
}

// NewAPI creates the API handlers.
func NewAPI(db *sqlx.DB, svc *forum.Service) *API {
	return &API{db: db, svc: svc}
}

type sectionView struct {
	models.Section
	Forums []models.Forum `json:"forums"`
}

// Sections lists every section with its forums, in display order.
func (a *API) Sections(w http.ResponseWriter, r *http.Request) {
	sections, err := store.NewSectionStore(a.db).List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	forums, err := store.NewForumStore(a.db).List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	bySection := make(map[int64][]models.Forum)
	for _, f := range forums {
		bySection[f.SectionID] = append(bySection[f.SectionID], f)
	}
	out := make([]sectionView, 0, len(sections))
	for _, s := range sections {
		fs := bySection[s.ID]
		if fs == nil {
			fs = []models.Forum{}
		}
		out = append(out, sectionView{Section: s, Forums: fs})
	}
	writeJSON(w, http.StatusOK, out)
}

// ForumTopics lists a forum's topics, pinned first. Hidden topics are
// listed only with ?hidden=true.
func (a *API) ForumTopics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := store.NewForumStore(a.db).FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f == nil {
		writeError(w, r, forum.ErrNotFound)
		return
	}
	topics, err := store.NewTopicStore(a.db).ListByForum(r.Context(), id, queryBool(r, "hidden"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if topics == nil {
		topics = []models.Topic{}
	}
	if err := a.svc.AddPendingViews(r.Context(), topics); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forum": f, "topics": topics})
}

// TopicPosts returns one page of a topic's regular posts, or of its
// metaposts with ?meta=true.
func (a *API) TopicPosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1, maxPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	perPage, err := queryInt(r, "per_page", forum.DefaultPostsPerPage, maxPerPage)
	if err != nil {
		writeError(w, r, err)
		return
	}

	topic, err := store.NewTopicStore(a.db).FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if topic == nil {
		writeError(w, r, forum.ErrNotFound)
		return
	}
	ch := models.ChannelOf(queryBool(r, "meta"))
	posts, err := store.NewPostStore(a.db).ListPage(r.Context(), id, ch, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	if err := store.NewProfileCache(store.NewProfileStore(a.db)).Attach(r.Context(), posts); err != nil {
		writeError(w, r, err)
		return
	}

	total := topic.Count(ch)
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":    topic,
		"channel":  ch.String(),
		"page":     page,
		"pages":    max(1, (total+perPage-1)/perPage),
		"per_page": perPage,
		"posts":    posts,
	})
}

// RecordView counts a view of a topic.
func (a *API) RecordView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.RecordView(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostLocation tells where a post is shown: its topic, channel and page.
// ?viewer= applies that user's posts-per-page preference.
func (a *API) PostLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	viewer, err := queryInt64(r, "viewer")
	if err != nil {
		writeError(w, r, err)
		return
	}
	post, page, err := a.svc.PostLocation(r.Context(), id, viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post_id":      post.ID,
		"topic_id":     post.TopicID,
		"meta":         post.Meta,
		"num_in_topic": post.NumInTopic,
		"page":         page,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, forum.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, forum.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, forum.ErrInvalidTransition), errors.Is(err, forum.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := http.StatusText(status)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
