package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/repositories"
)

// CreateGroupInput describes a new group; the caller becomes its admin.
type CreateGroupInput struct {
	GroupName      string   `json:"groupName"`
	Members        []string `json:"members"`
	FocusCourses   []string `json:"focusCourses"`
	SuggestedTimes []string `json:"suggestedTimes"`
	Reason         string   `json:"reason"`
}

// GroupSnapshot is a whole-group replacement. Version, when set, must match
// the stored version. Messages, when set, replaces the message log.
type GroupSnapshot struct {
	GroupName      string            `json:"groupName"`
	Admin          string            `json:"admin"`
	Members        []string          `json:"members"`
	FocusCourses   []string          `json:"focusCourses"`
	SuggestedTimes []string          `json:"suggestedTimes"`
	Reason         string            `json:"reason"`
	Version        *int64            `json:"version"`
	Messages       *[]models.Message `json:"messages"`
}

// GroupService implements the group lifecycle.
type GroupService struct {
	groups repositories.GroupRepository
}

func NewGroupService(groups repositories.GroupRepository) *GroupService {
	return &GroupService{groups: groups}
}

func (s *GroupService) Create(ctx context.Context, caller string, in CreateGroupInput) (models.Group, error) {
	name := strings.TrimSpace(in.GroupName)
	if name == "" {
		return models.Group{}, apperr.InvalidArg("Group name is required.")
	}
	if caller == "" {
		return models.Group{}, apperr.InvalidArg("Group admin is required.")
	}

	members := cleanList(in.Members)
	if !contains(members, caller) {
		members = append([]string{caller}, members...)
	}

	group, err := s.groups.CreateGroup(ctx, models.Group{
		ID:             "group-" + uuid.NewString(),
		GroupName:      name,
		Admin:          caller,
		Members:        members,
		FocusCourses:   cleanList(in.FocusCourses),
		SuggestedTimes: cleanList(in.SuggestedTimes),
		Reason:         strings.TrimSpace(in.Reason),
	})
	if err != nil {
		return models.Group{}, translate(err, "create group")
	}
	observability.IncGroupEvent("created")
	logging.Log.Info("group created", zap.String("group_id", group.ID), zap.String("admin", caller))
	return group, nil
}

func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	groups, err := s.groups.ListGroups(ctx)
	return groups, translate(err, "list groups")
}

func (s *GroupService) Get(ctx context.Context, groupID string) (models.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	return group, translate(err, "load group")
}

// Join adds username to the group. Joining twice is a no-op.
func (s *GroupService) Join(ctx context.Context, groupID, username string) (models.Group, error) {
	ctx, span := tracer.Start(ctx, "groups.Join")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	group, change, err := s.groups.MutateGroup(ctx, groupID, func(g *models.Group) (repositories.GroupChange, error) {
		if g.HasMember(username) {
			return repositories.GroupUnchanged, nil
		}
		g.Members = append(g.Members, username)
		return repositories.GroupSaved, nil
	})
	if err != nil {
		return models.Group{}, translate(err, "join group")
	}
	if change == repositories.GroupSaved {
		observability.IncGroupEvent("joined")
	}
	return group, nil
}

// Leave removes username. The last member leaving deletes the group and
// deleted is true. An admin who leaves hands the role to the member who
// joined earliest.
func (s *GroupService) Leave(ctx context.Context, groupID, username string) (models.Group, bool, error) {
	ctx, span := tracer.Start(ctx, "groups.Leave")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	group, change, err := s.groups.MutateGroup(ctx, groupID, func(g *models.Group) (repositories.GroupChange, error) {
		if !g.HasMember(username) {
			return repositories.GroupUnchanged, apperr.InvalidArg("You are not a member of this group.")
		}
		remaining := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			if m != username {
				remaining = append(remaining, m)
			}
		}
		if len(remaining) == 0 {
			return repositories.GroupDeleted, nil
		}
		g.Members = remaining
		if g.Admin == username {
			g.Admin = remaining[0]
		}
		return repositories.GroupSaved, nil
	})
	if err != nil {
		return models.Group{}, false, translate(err, "leave group")
	}

	if change == repositories.GroupDeleted {
		observability.IncGroupEvent("deleted")
		logging.Log.Info("group deleted after last member left", zap.String("group_id", groupID))
		return models.Group{}, true, nil
	}
	observability.IncGroupEvent("left")
	return group, false, nil
}

// Update replaces the group document with snap. The path id always wins.
func (s *GroupService) Update(ctx context.Context, caller, groupID string, snap GroupSnapshot) (models.Group, error) {
	ctx, span := tracer.Start(ctx, "groups.Update")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	name := strings.TrimSpace(snap.GroupName)
	if name == "" {
		return models.Group{}, apperr.InvalidArg("Group name is required.")
	}
	members := cleanList(snap.Members)
	if len(members) == 0 {
		return models.Group{}, apperr.InvalidArg("A group needs at least one member.")
	}
	admin := strings.TrimSpace(snap.Admin)
	if !contains(members, admin) {
		return models.Group{}, apperr.InvalidArg("The admin must be a member of the group.")
	}

	var log []models.Message
	if snap.Messages != nil {
		normalized, err := normalizeLog(*snap.Messages)
		if err != nil {
			return models.Group{}, err
		}
		log = normalized
	}

	group, _, err := s.groups.MutateGroup(ctx, groupID, func(g *models.Group) (repositories.GroupChange, error) {
		if snap.Version != nil && *snap.Version != g.Version {
			return repositories.GroupUnchanged, apperr.AlreadyExists("The group was changed by someone else. Reload and try again.")
		}
		if !g.HasMember(caller) {
			return repositories.GroupUnchanged, apperr.Forbidden("Only members can edit this group.")
		}
		if name != g.GroupName && caller != g.Admin {
			return repositories.GroupUnchanged, apperr.Forbidden("Only the group admin can rename the group.")
		}
		if admin != g.Admin && caller != g.Admin {
			return repositories.GroupUnchanged, apperr.Forbidden("Only the group admin can hand over the admin role.")
		}

		g.GroupName = name
		g.Admin = admin
		g.Members = members
		g.FocusCourses = cleanList(snap.FocusCourses)
		g.SuggestedTimes = cleanList(snap.SuggestedTimes)
		g.Reason = strings.TrimSpace(snap.Reason)
		g.Messages = log
		return repositories.GroupSaved, nil
	})
	if err != nil {
		return models.Group{}, translate(err, "update group")
	}
	observability.IncGroupEvent("updated")
	return group, nil
}

// Delete removes the group and its log. Only the admin may do this.
func (s *GroupService) Delete(ctx context.Context, caller, groupID string) error {
	_, _, err := s.groups.MutateGroup(ctx, groupID, func(g *models.Group) (repositories.GroupChange, error) {
		if g.Admin != caller {
			return repositories.GroupUnchanged, apperr.Forbidden("Only the group admin can delete the group.")
		}
		return repositories.GroupDeleted, nil
	})
	if err != nil {
		return translate(err, "delete group")
	}
	observability.IncGroupEvent("deleted")
	logging.Log.Info("group deleted", zap.String("group_id", groupID), zap.String("admin", caller))
	return nil
}

// normalizeLog validates a replacement log. System notices are dropped,
// reactions are deduplicated and every parent must point at another entry.
func normalizeLog(msgs []models.Message) ([]models.Message, error) {
	out := make([]models.Message, 0, len(msgs))
	ids := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.Sender == models.SenderSystem {
			continue
		}
		if m.ID == "" || m.Sender == "" || strings.TrimSpace(m.Text) == "" {
			return nil, apperr.InvalidArg("Every message needs an id, a sender and text.")
		}
		if _, dup := ids[m.ID]; dup {
			return nil, apperr.InvalidArg("Duplicate message id " + m.ID + ".")
		}
		ids[m.ID] = struct{}{}
		m.Reactions = m.Reactions.Normalize()
		out = append(out, m)
	}
	for _, m := range out {
		if m.ParentID == "" {
			continue
		}
		if _, ok := ids[m.ParentID]; !ok || m.ParentID == m.ID {
			return nil, apperr.InvalidArg("Message " + m.ID + " replies to an unknown message.")
		}
	}
	return out, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
