package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"authgrid.org/internal/auth"
)

type createUserRequest struct {
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Password    string   `json:"password"`
	IsActive    *bool    `json:"is_active"`
	IsSuperuser bool     `json:"is_superuser"`
	RoleIDs     []string `json:"role_ids"`
}

type updateUserRequest struct {
	Email    *string  `json:"email"`
	FullName *string  `json:"full_name"`
	Password *string  `json:"password"`
	IsActive *bool    `json:"is_active"`
	RoleIDs  []string `json:"role_ids"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type updatePermissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}
		user, err := a.auth.CreateUser(r.Context(), auth.CreateUserInput{
			Email:       req.Email,
			FullName:    req.FullName,
			Password:    req.Password,
			IsActive:    active,
			IsSuperuser: req.IsSuperuser,
			RoleIDs:     req.RoleIDs,
		})
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.create", "user", user.ID, map[string]any{
			"email": user.Email,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, user)
	case http.MethodGet:
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, err := a.auth.GetUser(r.Context(), userID)
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.auth.UpdateUser(r.Context(), userID, auth.UserUpdate{
			Email:    req.Email,
			FullName: req.FullName,
			Password: req.Password,
			IsActive: req.IsActive,
			RoleIDs:  req.RoleIDs,
		})
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.update", "user", userID, nil)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.auth.DeleteUser(r.Context(), userID); err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.delete", "user", userID, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.create", "role", role.ID, map[string]any{
			"name": role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		roles, err := a.auth.ListRoles(r.Context())
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]

	if len(parts) == 2 && parts[1] == "permissions" {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		var req setRolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.auth.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.permissions.update", "role", roleID, map[string]any{
			"count": len(req.Permissions),
		})
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		role, err := a.auth.GetRole(r.Context(), roleID)
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.UpdateRole(r.Context(), roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.update", "role", roleID, nil)
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.auth.DeleteRole(r.Context(), roleID); err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.delete", "role", roleID, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		perms, err := a.auth.ListPermissions(r.Context())
		if err != nil {
			handleAdminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPatch:
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.auth.UpdatePermissionDescription(r.Context(), req.Name, req.Description); err != nil {
			handleAdminError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.update", "permission", req.Name, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}
