package provider

import (
	"github.com/enroll-next/internal/authz"
	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/queue"
	"github.com/enroll-next/internal/repository"
	"github.com/enroll-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AgentRepo         repository.AgentRepository
	MemberRepo        repository.MemberRepository
	PlanRepo          repository.PlanRepository
	SubscriptionRepo  repository.SubscriptionRepository
	CommissionRepo    repository.CommissionRepository
	SettingRepo       repository.SettingRepository
	AgentLoginLogRepo repository.AgentLoginLogRepository

	// Services
	AuthzService         *authz.Service
	AuthService          *service.AuthService
	AgentLoginLogService *service.AgentLoginLogService
	HierarchyService     *service.HierarchyService
	AccessPolicy         *service.AccessPolicy
	RateTableService     *service.RateTableService
	CommissionCalc       *service.CommissionCalculator
	CommissionService    *service.CommissionService
	EnrollmentService    *service.EnrollmentService
	AgentService         *service.AgentService
	MemberService        *service.MemberService
	PlanService          *service.PlanService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AgentRepo = repository.NewAgentRepository(db)
	c.MemberRepo = repository.NewMemberRepository(db)
	c.PlanRepo = repository.NewPlanRepository(db)
	c.SubscriptionRepo = repository.NewSubscriptionRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.AgentLoginLogRepo = repository.NewAgentLoginLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AgentLoginLogService = service.NewAgentLoginLogService(c.AgentLoginLogRepo)
	c.AuthService = service.NewAuthService(c.Config, c.AgentRepo, c.AgentLoginLogService)
	c.HierarchyService = service.NewHierarchyService(c.AgentRepo)
	c.AccessPolicy = service.NewAccessPolicy(c.HierarchyService)
	c.RateTableService = service.NewRateTableService(c.SettingRepo)
	c.CommissionCalc = service.NewCommissionCalculator(c.RateTableService)
	c.CommissionService = service.NewCommissionService(c.Config, c.CommissionRepo, c.AgentRepo, c.MemberRepo, c.CommissionCalc, c.AccessPolicy)
	c.EnrollmentService = service.NewEnrollmentService(c.AgentRepo, c.MemberRepo, c.PlanRepo, c.SubscriptionRepo, c.CommissionService)
	c.AgentService = service.NewAgentService(c.Config, c.AgentRepo, c.HierarchyService, c.AccessPolicy)
	c.MemberService = service.NewMemberService(c.MemberRepo, c.SubscriptionRepo, c.AccessPolicy)
	c.PlanService = service.NewPlanService(c.PlanRepo)
}
