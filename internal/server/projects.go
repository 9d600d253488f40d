package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
	"kanban/internal/validation"
)

type projectForm struct {
	Name string `form:"name" json:"name" binding:"required,max=255"`
}

type joinCodeForm struct {
	InviteCode string `form:"invite_code" json:"invite_code" binding:"required"`
}

type addMemberForm struct {
	Username string `form:"username" json:"username" binding:"required"`
}

// handleProjectList shows the projects the caller belongs to.
func (s *Server) handleProjectList(c *gin.Context) {
	projects, err := s.board.ListProjects(c.Request.Context(), mustIdentity(c))
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.html(c, http.StatusOK, "project_list", gin.H{"title": "Projects", "projects": projects})
}

func (s *Server) handleProjectForm(c *gin.Context) {
	s.html(c, http.StatusOK, "project_form", gin.H{
		"title":  "New project",
		"form":   projectForm{},
		"errors": map[string]string{},
	})
}

// handleProjectCreate creates a project owned by the caller.
func (s *Server) handleProjectCreate(c *gin.Context) {
	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		s.projectFormError(c, form, err)
		return
	}
	project, err := s.board.CreateProject(c.Request.Context(), mustIdentity(c), form.Name)
	if err != nil {
		s.projectFormError(c, form, err)
		return
	}
	recordEvent("project_created")
	c.Redirect(http.StatusFound, projectURL(project.ID))
}

func (s *Server) projectFormError(c *gin.Context, form projectForm, err error) {
	fields, ok := formErrors(err)
	if !ok {
		s.pageError(c, err)
		return
	}
	s.html(c, http.StatusBadRequest, "project_form", gin.H{"title": "New project", "form": form, "errors": fields})
}

// handleProjectDetail renders the board. Non-members are sent back to their list.
func (s *Server) handleProjectDetail(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	b, err := s.board.Board(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.html(c, http.StatusOK, "project_detail", gin.H{
		"title":     b.Project.Name,
		"board":     b,
		"inviteURL": inviteURL(c, b.Project.ID, b.Project.InviteToken),
	})
}

// handleProjectJoin joins through an invite link.
func (s *Server) handleProjectJoin(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	res, err := s.board.JoinByInviteToken(c.Request.Context(), mustIdentity(c), id, c.Param("token"))
	switch {
	case errors.Is(err, board.ErrInvalidInviteToken):
		s.flash(c, "That invite link is not valid for this project.")
	case err != nil:
		s.pageError(c, err)
		return
	case res == board.Joined:
		recordEvent("member_joined")
		s.flash(c, "You joined the project.")
	}
	c.Redirect(http.StatusFound, projectURL(id))
}

func (s *Server) handleJoinByCodeForm(c *gin.Context) {
	s.html(c, http.StatusOK, "join_by_code", gin.H{"title": "Join a project", "code": "", "error": ""})
}

// handleJoinByCode joins the project whose invite token was typed in.
func (s *Server) handleJoinByCode(c *gin.Context) {
	var form joinCodeForm
	if err := c.ShouldBind(&form); err != nil {
		s.html(c, http.StatusBadRequest, "join_by_code", gin.H{
			"title": "Join a project", "code": form.InviteCode, "error": "Enter an invite code.",
		})
		return
	}
	project, res, err := s.board.JoinByCode(c.Request.Context(), mustIdentity(c), form.InviteCode)
	if errors.Is(err, board.ErrInvalidInviteToken) {
		s.html(c, http.StatusBadRequest, "join_by_code", gin.H{
			"title": "Join a project", "code": form.InviteCode, "error": err.Error(),
		})
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	if res == board.Joined {
		recordEvent("member_joined")
	}
	c.Redirect(http.StatusFound, projectURL(project.ID))
}

// handleAddMember lets any member add a user by username.
func (s *Server) handleAddMember(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	var form addMemberForm
	if err := c.ShouldBind(&form); err != nil {
		msg := unreadableForm
		if fields, ok := validation.Messages(err); ok {
			msg = fields["username"]
		}
		s.flash(c, msg)
		c.Redirect(http.StatusFound, projectURL(id))
		return
	}

	res, err := s.board.AddMemberByUsername(c.Request.Context(), mustIdentity(c), id, form.Username)
	switch {
	case errors.Is(err, board.ErrUserNotFound):
		s.flash(c, fmt.Sprintf("No user named %q.", form.Username))
	case err != nil:
		s.pageError(c, err)
		return
	case res == board.AlreadyMember:
		s.flash(c, fmt.Sprintf("%s is already a member.", form.Username))
	default:
		recordEvent("member_added")
		s.flash(c, fmt.Sprintf("Added %s.", form.Username))
	}
	c.Redirect(http.StatusFound, projectURL(id))
}

// handleRemoveMember is owner only; any denial just returns to the board.
func (s *Server) handleRemoveMember(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	userID, ok := s.pageID(c, "userId")
	if !ok {
		return
	}
	err := s.board.RemoveMember(c.Request.Context(), mustIdentity(c), id, userID)
	switch {
	case err == nil:
		recordEvent("member_removed")
	case errors.Is(err, board.ErrNotOwner), errors.Is(err, board.ErrCannotRemoveSelf):
		s.logger.Debug("remove member denied", "project_id", id, "error", err)
	default:
		s.pageError(c, err)
		return
	}
	c.Redirect(http.StatusFound, projectURL(id))
}

// handleProjectDelete removes a project. Owner only.
func (s *Server) handleProjectDelete(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	err := s.board.DeleteProject(c.Request.Context(), mustIdentity(c), id)
	if errors.Is(err, board.ErrNotOwner) {
		c.Redirect(http.StatusFound, projectURL(id))
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	recordEvent("project_deleted")
	s.flash(c, "Project deleted.")
	c.Redirect(http.StatusFound, "/projects")
}

// formErrors extracts field messages from binding or service validation errors.
func formErrors(err error) (map[string]string, bool) {
	if fields, ok := validation.Messages(err); ok {
		return fields, true
	}
	var verr *board.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}

func projectURL(id int64) string {
	return fmt.Sprintf("/projects/%d", id)
}

func inviteURL(c *gin.Context, projectID int64, token string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/projects/%d/join/%s", scheme, c.Request.Host, projectID, token)
}
