package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/podscale/adops/app/dto"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

const (
	ConflictSeverityBlocking = "blocking"
	ConflictSeverityWarning  = "warning"

	ConflictReasonCategory   = "category_overlap"
	ConflictReasonCompetitor = "competitor_exclusivity"
	ConflictReasonSlotTaken  = "slot_taken"
)

// ConflictQuery names the campaign under review.
type ConflictQuery struct {
	CampaignID uint
	CategoryID uint
}

// ConflictFlow detects category and competitor collisions for a campaign.
type ConflictFlow interface {
	CheckConflicts(ctx context.Context, p models.Partition, q ConflictQuery) ([]dto.ConflictDTO, error)
	CheckConflictsByUUID(ctx context.Context, p models.Partition, campaignUUID uuid.UUID) (*dto.CampaignConflictsResponse, error)
}

type ConflictFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	spotRepo      repository.SpotRepository
	directoryRepo repository.DirectoryRepository
}

func NewConflictFlow(
	campaignRepo repository.CampaignRepository,
	spotRepo repository.SpotRepository,
	directoryRepo repository.DirectoryRepository,
) ConflictFlow {
	return &ConflictFlowImpl{
		campaignRepo:  campaignRepo,
		spotRepo:      spotRepo,
		directoryRepo: directoryRepo,
	}
}

func (f *ConflictFlowImpl) CheckConflicts(ctx context.Context, p models.Partition, q ConflictQuery) ([]dto.ConflictDTO, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}

	campaign, err := f.campaignRepo.ByID(ctx, p, q.CampaignID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("campaign %d not found", q.CampaignID), ErrCampaignNotFound)
	}

	conflicts := []dto.ConflictDTO{}

	category, err := f.categoryConflicts(ctx, p, campaign, q)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, category...)

	competitor, err := f.competitorConflicts(ctx, p, campaign)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, competitor...)

	return conflicts, nil
}

// CheckConflictsByUUID resolves the campaign by its public identifier and
// runs the standard conflict check.
func (f *ConflictFlowImpl) CheckConflictsByUUID(ctx context.Context, p models.Partition, campaignUUID uuid.UUID) (*dto.CampaignConflictsResponse, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}

	campaign, err := f.campaignRepo.ByUUID(ctx, p, campaignUUID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("campaign %s not found", campaignUUID), ErrCampaignNotFound)
	}

	conflicts, err := f.CheckConflicts(ctx, p, ConflictQuery{CampaignID: campaign.ID, CategoryID: campaign.CategoryID})
	if err != nil {
		return nil, err
	}
	return &dto.CampaignConflictsResponse{
		Message:      "conflicts retrieved",
		CampaignID:   campaign.ID,
		CampaignUUID: campaign.UUID.String(),
		Conflicts:    conflicts,
	}, nil
}

// categoryConflicts compares this campaign's scheduled-spot date range
// against other conflict-relevant campaigns in the same category. A
// campaign that has not scheduled anything yet collides with nothing.
func (f *ConflictFlowImpl) categoryConflicts(ctx context.Context, p models.Partition, campaign *models.Campaign, q ConflictQuery) ([]dto.ConflictDTO, error) {
	categoryID := q.CategoryID
	if categoryID == 0 {
		categoryID = campaign.CategoryID
	}

	ourStart, ourEnd, err := f.spotRepo.CampaignSpotRange(ctx, p, campaign.ID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to load campaign spot range", err)
	}
	if ourStart == nil || ourEnd == nil {
		return nil, nil
	}

	category, err := f.directoryRepo.CategoryByID(ctx, p, categoryID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up category", err)
	}
	severity := ConflictSeverityBlocking
	categoryName := ""
	if category != nil {
		categoryName = category.Name
		if category.ConflictPolicy == models.ConflictPolicyWarn {
			severity = ConflictSeverityWarning
		}
	}

	others, err := f.campaignRepo.ListConflictCandidates(ctx, p, categoryID, campaign.ID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to list category campaigns", err)
	}

	var conflicts []dto.ConflictDTO
	for _, other := range others {
		theirStart, theirEnd, err := f.spotRepo.CampaignSpotRange(ctx, p, other.ID)
		if err != nil {
			return nil, NewBusinessError(ErrCodeUnexpected, "failed to load competing spot range", err)
		}
		if theirStart == nil || theirEnd == nil {
			continue
		}
		if !utils.DateRangesOverlap(*ourStart, *ourEnd, *theirStart, *theirEnd) {
			continue
		}
		conflicts = append(conflicts, dto.ConflictDTO{
			Severity:     severity,
			Reason:       ConflictReasonCategory,
			CampaignID:   other.ID,
			CampaignName: other.Name,
			CategoryName: categoryName,
		})
	}
	return conflicts, nil
}

// competitorConflicts flags overlapping campaigns from advertisers in the
// same competitor set. These are blocking regardless of category policy.
func (f *ConflictFlowImpl) competitorConflicts(ctx context.Context, p models.Partition, campaign *models.Campaign) ([]dto.ConflictDTO, error) {
	advertiser, err := f.directoryRepo.AdvertiserByID(ctx, p, campaign.AdvertiserID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up advertiser", err)
	}
	if advertiser == nil || advertiser.CompetitorSetID == nil {
		return nil, nil
	}

	set, err := f.directoryRepo.CompetitorSetByID(ctx, p, *advertiser.CompetitorSetID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up competitor set", err)
	}
	setName := ""
	if set != nil {
		setName = set.Name
	}

	competitors, err := f.directoryRepo.ListCompetitors(ctx, p, *advertiser.CompetitorSetID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to list competitors", err)
	}
	competitorIDs := make([]uint, 0, len(competitors))
	for _, c := range competitors {
		if c.ID != advertiser.ID {
			competitorIDs = append(competitorIDs, c.ID)
		}
	}
	if len(competitorIDs) == 0 {
		return nil, nil
	}

	others, err := f.campaignRepo.ListByAdvertisers(ctx, p, competitorIDs)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to list competitor campaigns", err)
	}

	var conflicts []dto.ConflictDTO
	for _, other := range others {
		if other.ID == campaign.ID || !other.Status.ConflictRelevant() {
			continue
		}
		if !utils.DateRangesOverlap(campaign.StartDate, campaign.EndDate, other.StartDate, other.EndDate) {
			continue
		}
		conflicts = append(conflicts, dto.ConflictDTO{
			Severity:          ConflictSeverityBlocking,
			Reason:            ConflictReasonCompetitor,
			CampaignID:        other.ID,
			CampaignName:      other.Name,
			CompetitorSetName: setName,
		})
	}
	return conflicts, nil
}
