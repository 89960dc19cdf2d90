package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/policy/engine"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/scaffold"
)

// SetupRSL copies the RSL template into the bound folder.
func (h *Handler) SetupRSL(c *gin.Context) {
	h.setupTemplate(c, engine.ActionSetupRSL, scaffold.RSL)
}

// SetupASL copies the ASL template into the bound folder.
func (h *Handler) SetupASL(c *gin.Context) {
	h.setupTemplate(c, engine.ActionSetupASL, scaffold.ASL)
}

func (h *Handler) setupTemplate(c *gin.Context, action, kind string) {
	sess, ok := h.authorize(c, action)
	if !ok {
		return
	}
	n, err := h.Scaffold.Apply(kind, sess.Folder)
	if err != nil {
		log.Printf("workspace: %s template into %s: %v", kind, sess.Folder, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("workspace: copied %d %s template files into %s", n, kind, sess.WorkspaceName)
	c.Status(http.StatusOK)
}

// SetupCustom relays the portal's custom file list for the session's workspace.
func (h *Handler) SetupCustom(c *gin.Context) {
	sess, ok := h.authorize(c, engine.ActionSetupCustom)
	if !ok {
		return
	}
	list, err := h.Portal.ListFiles(c.Request.Context(), sess.WorkspaceID)
	if err != nil {
		log.Printf("workspace: list portal files for %d: %v", sess.WorkspaceID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, list.ContentType, list.Body)
}

// SetupCustomAccepted downloads one portal file (fileid) into the bound folder as filename.
func (h *Handler) SetupCustomAccepted(c *gin.Context) {
	filename, fileID := c.Query("filename"), c.Query("fileid")
	if filename == "" || fileID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "filename and fileid are required"})
		return
	}
	sess, ok := h.authorize(c, engine.ActionSetupCustomAccepted)
	if !ok {
		return
	}
	if _, err := h.Portal.Download(c.Request.Context(), h.Fs, sess.Folder, fileID, filename); err != nil {
		log.Printf("workspace: download portal file %s: %v", fileID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
