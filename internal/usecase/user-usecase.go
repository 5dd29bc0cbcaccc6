package usecase

import (
	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
)

// UserUsecase resolves the role of a Discord user from the configured admin
// ids and elevated guild roles.
type UserUsecase struct {
	admins        map[string]struct{}
	elevatedRoles map[string]struct{}
}

func NewUserUsecase(discordCfg config.Discord) *UserUsecase {
	u := &UserUsecase{
		admins:        make(map[string]struct{}, len(discordCfg.AdminUserIDs)),
		elevatedRoles: make(map[string]struct{}, len(discordCfg.ElevatedRoleIDs)),
	}
	for _, id := range discordCfg.AdminUserIDs {
		u.admins[id] = struct{}{}
	}
	for _, id := range discordCfg.ElevatedRoleIDs {
		u.elevatedRoles[id] = struct{}{}
	}
	return u
}

func (u *UserUsecase) GetUserRole(author model.Author) model.UserRole {
	if _, ok := u.admins[author.ID]; ok {
		return model.UserRoleAdmin
	}
	for _, roleID := range author.RoleIDs {
		if _, ok := u.elevatedRoles[roleID]; ok {
			return model.UserRoleElevated
		}
	}
	return model.UserRoleDefault
}

// WithRole returns author with Role filled in.
func (u *UserUsecase) WithRole(author model.Author) model.Author {
	author.Role = u.GetUserRole(author)
	return author
}
