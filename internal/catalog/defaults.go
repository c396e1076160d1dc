package catalog

// Feature and limit keys are persisted in entitlement rows and exposed to
// clients. They are append-only: never rename or remove one.
const (
	FeatureProgrammingTracks      FeatureKey = "programming_tracks"
	FeatureProgramCalendar        FeatureKey = "program_calendar"
	FeatureProgramAnalytics       FeatureKey = "program_analytics"
	FeatureHostCompetitions       FeatureKey = "host_competitions"
	FeatureCustomScalingGroups    FeatureKey = "custom_scaling_groups"
	FeatureAIWorkoutGeneration    FeatureKey = "ai_workout_generation"
	FeatureAIProgrammingAssistant FeatureKey = "ai_programming_assistant"
	FeatureMultiTeamManagement    FeatureKey = "multi_team_management"
	FeaturePrioritySupport        FeatureKey = "priority_support"
)

const (
	LimitMaxTeams               LimitKey = "max_teams"
	LimitMaxMembersPerTeam      LimitKey = "max_members_per_team"
	LimitMaxProgrammingTracks   LimitKey = "max_programming_tracks"
	LimitAIMessagesPerMonth     LimitKey = "ai_messages_per_month"
	LimitMaxCompetitionsPerYear LimitKey = "max_competitions_per_year"
	LimitMaxAdmins              LimitKey = "max_admins"
)

const (
	PlanFree       PlanID = "free"
	PlanPro        PlanID = "pro"
	PlanEnterprise PlanID = "enterprise"
)

const (
	AddonExtraSeats AddonID = "extra_seats"
	AddonAIBoost    AddonID = "ai_boost"
)

// DefaultDefinition is the catalog used when no catalog file is deployed.
func DefaultDefinition() Definition {
	return Definition{
		Features: []Feature{
			{Key: FeatureProgrammingTracks, Name: "Programming tracks", Description: "Publish structured training programs"},
			{Key: FeatureProgramCalendar, Name: "Program calendar", Description: "Schedule workouts on a shared calendar"},
			{Key: FeatureProgramAnalytics, Name: "Program analytics", Description: "Completion and performance reporting"},
			{Key: FeatureHostCompetitions, Name: "Host competitions", Description: "Run public competitions"},
			{Key: FeatureCustomScalingGroups, Name: "Custom scaling groups", Description: "Define scaling tiers per workout"},
			{Key: FeatureAIWorkoutGeneration, Name: "AI workout generation"},
			{Key: FeatureAIProgrammingAssistant, Name: "AI programming assistant"},
			{Key: FeatureMultiTeamManagement, Name: "Multi-team management"},
			{Key: FeaturePrioritySupport, Name: "Priority support"},
		},
		Limits: []Limit{
			{Key: LimitMaxTeams, Name: "Teams", ResetPeriod: ResetNever},
			{Key: LimitMaxMembersPerTeam, Name: "Members per team", ResetPeriod: ResetNever},
			{Key: LimitMaxProgrammingTracks, Name: "Programming tracks", ResetPeriod: ResetNever},
			{Key: LimitAIMessagesPerMonth, Name: "AI messages per month", ResetPeriod: ResetMonthly},
			{Key: LimitMaxCompetitionsPerYear, Name: "Competitions per year", ResetPeriod: ResetYearly},
			{Key: LimitMaxAdmins, Name: "Admins", ResetPeriod: ResetNever},
		},
		Plans: []Plan{
			{
				ID:         PlanFree,
				Name:       "Free",
				PriceCents: 0,
				Interval:   IntervalNone,
				Features:   []FeatureKey{FeatureProgrammingTracks, FeatureProgramCalendar},
				Limits: map[LimitKey]int64{
					LimitMaxTeams:               1,
					LimitMaxMembersPerTeam:      10,
					LimitMaxProgrammingTracks:   1,
					LimitAIMessagesPerMonth:     0,
					LimitMaxCompetitionsPerYear: 0,
					LimitMaxAdmins:              1,
				},
			},
			{
				ID:         PlanPro,
				Name:       "Pro",
				PriceCents: 4900,
				Interval:   IntervalMonth,
				Features: []FeatureKey{
					FeatureProgrammingTracks,
					FeatureProgramCalendar,
					FeatureProgramAnalytics,
					FeatureHostCompetitions,
					FeatureCustomScalingGroups,
					FeatureAIWorkoutGeneration,
				},
				Limits: map[LimitKey]int64{
					LimitMaxTeams:               1,
					LimitMaxMembersPerTeam:      50,
					LimitMaxProgrammingTracks:   5,
					LimitAIMessagesPerMonth:     200,
					LimitMaxCompetitionsPerYear: 12,
					LimitMaxAdmins:              5,
				},
			},
			{
				ID:         PlanEnterprise,
				Name:       "Enterprise",
				PriceCents: 19900,
				Interval:   IntervalMonth,
				Features: []FeatureKey{
					FeatureProgrammingTracks,
					FeatureProgramCalendar,
					FeatureProgramAnalytics,
					FeatureHostCompetitions,
					FeatureCustomScalingGroups,
					FeatureAIWorkoutGeneration,
					FeatureAIProgrammingAssistant,
					FeatureMultiTeamManagement,
					FeaturePrioritySupport,
				},
				Limits: map[LimitKey]int64{
					LimitMaxTeams:               Unlimited,
					LimitMaxMembersPerTeam:      Unlimited,
					LimitMaxProgrammingTracks:   Unlimited,
					LimitAIMessagesPerMonth:     2000,
					LimitMaxCompetitionsPerYear: Unlimited,
					LimitMaxAdmins:              Unlimited,
				},
			},
		},
		Addons: []Addon{
			{
				ID:     AddonExtraSeats,
				Name:   "Extra seats (10 pack)",
				Limits: map[LimitKey]int64{LimitMaxMembersPerTeam: 10},
			},
			{
				ID:       AddonAIBoost,
				Name:     "AI boost",
				Features: []FeatureKey{FeatureAIProgrammingAssistant},
				Limits:   map[LimitKey]int64{LimitAIMessagesPerMonth: 500},
			},
		},
	}
}

// Default builds the built-in catalog. The definition is static, so a
// validation failure is a programming error.
func Default() *Catalog {
	c, err := New(DefaultDefinition())
	if err != nil {
		panic(err)
	}
	return c
}
