// Package elastic implements the Elastic (AWS) cluster backend
//: EC2 instance lifecycle, AMI resolution/building, AZ
// selection, and security-group idempotence, using aws-sdk-go-v2.
package elastic

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/cluster"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
	"github.com/hailstorm-project/hailstorm/internal/util"
)

// ec2API is the slice of *ec2.Client's methods the backend calls, narrowed
// to a Go interface so instance lifecycle can be tested against a fake
// without live AWS credentials.
type ec2API interface {
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
	DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)
	DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	CreateImage(ctx context.Context, params *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error)
	DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

var _ ec2API = (*ec2.Client)(nil)

// InstanceState is the per-agent host state machine:
// ABSENT → PENDING → RUNNING → STOPPED → RUNNING | TERMINATED.
type InstanceState string

const (
	StateAbsent     InstanceState = "absent"
	StatePending    InstanceState = "pending"
	StateRunning    InstanceState = "running"
	StateStopped    InstanceState = "stopped"
	StateTerminated InstanceState = "terminated"
)

// baseAMIByRegion is the per-region base image used for builder instances,
// before JMeter is provisioned onto it.
var baseAMIByRegion = map[string]string{
	"us-east-1": "ami-0c02fb55956c7d316",
	"us-west-2": "ami-0ddf424f81ddb0720",
	"eu-west-1": "ami-0694d931cee176e7d",
}

// Config bundles an AmazonCloud row with the derived settings a running
// backend needs (project code, JMeter version/installer) to set up and
// size a cluster.
type Config struct {
	Cloud            *model.AmazonCloud
	ProjectCode      string
	JmeterVersion    string
	InstallerURL     string // empty ⇒ use the stock public JMeter distribution
	IdentityDir      string
	SecurityGroupTag string
}

// Backend is the elastic cluster.Backend implementation.
type Backend struct {
	cfg Config
	ec2 ec2API

	builderInstanceID string // tracked across create_agent_ami so cleanup can guarantee release
}

var _ cluster.Backend = (*Backend)(nil)

// New builds a Backend against cfg.Cloud's region and credentials.
func New(ctx *hscontext.Context, cfg Config) (*Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx.Context,
		config.WithRegion(cfg.Cloud.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Cloud.AccessKey, cfg.Cloud.SecretKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return &Backend{cfg: cfg, ec2: ec2.NewFromConfig(awsCfg)}, nil
}

func (b *Backend) amiName() string {
	if b.cfg.InstallerURL != "" {
		return fmt.Sprintf("hailstorm-%s-jmeter-%s", b.cfg.ProjectCode, b.cfg.JmeterVersion)
	}
	return fmt.Sprintf("hailstorm-stock-jmeter-%s", b.cfg.JmeterVersion)
}

// Setup reconciles identity file, availability zone, AMI, and security
// group, in that order since AMI resolution needs the AZ and the security
// group needs the AMI's VPC.
func (b *Backend) Setup(ctx *hscontext.Context) error {
	setupErr := hserrors.NewSetupException()

	if err := b.ensureIdentityFile(ctx); err != nil {
		setupErr.Add("identity file", err)
	}
	if err := b.ensureAvailabilityZone(ctx); err != nil {
		setupErr.Add("availability zone", err)
	}
	if err := b.ensureAMI(ctx); err != nil {
		setupErr.Add("ami resolution", err)
	}
	if b.cfg.Cloud.Active {
		if err := b.ensureSecurityGroup(ctx); err != nil {
			setupErr.Add("security group", err)
		}
	}
	return setupErr.ErrorOrNil()
}

// ensureIdentityFile accepts an existing local identity, else creates and
// persists a new key pair if the remote name is free, else fails on
// conflict.
func (b *Backend) ensureIdentityFile(ctx *hscontext.Context) error {
	path := b.cfg.Cloud.SSHIdentity
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return nil
	}

	keyName := fmt.Sprintf("hailstorm-%s", b.cfg.ProjectCode)
	existing, err := b.ec2.DescribeKeyPairs(ctx.Context, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{keyName},
	})
	if err == nil && len(existing.KeyPairs) > 0 {
		return errors.Errorf("identity file conflict: key pair %q already exists remotely but no local identity file at %q", keyName, path)
	}

	created, err := b.ec2.CreateKeyPair(ctx.Context, &ec2.CreateKeyPairInput{KeyName: aws.String(keyName)})
	if err != nil {
		return errors.Wrap(err, "creating key pair")
	}
	if err := os.WriteFile(path, []byte(aws.ToString(created.KeyMaterial)), 0o600); err != nil {
		return errors.Wrapf(err, "persisting private key to %s", path)
	}
	b.cfg.Cloud.AutogeneratedSSHKey = true
	return nil
}

// ensureAvailabilityZone picks the first available AZ, sorted by name,
// whenever none is configured; it does not look at master_slave_mode, so an
// AZ is picked outside master-slave mode too.
func (b *Backend) ensureAvailabilityZone(ctx *hscontext.Context) error {
	if b.cfg.Cloud.Zone != "" {
		return nil
	}
	azs, err := b.ec2.DescribeAvailabilityZones(ctx.Context, &ec2.DescribeAvailabilityZonesInput{
		Filters: []types.Filter{{Name: aws.String("state"), Values: []string{"available"}}},
	})
	if err != nil {
		return errors.Wrap(err, "describing availability zones")
	}
	names := make([]string, 0, len(azs.AvailabilityZones))
	for _, az := range azs.AvailabilityZones {
		names = append(names, aws.ToString(az.ZoneName))
	}
	if len(names) == 0 {
		return errors.New("no available availability zones in region")
	}
	sort.Strings(names)
	b.cfg.Cloud.Zone = names[0]
	return nil
}

// ensureAMI adopts an existing AMI by name, or builds one from scratch
//.
func (b *Backend) ensureAMI(ctx *hscontext.Context) error {
	if b.cfg.Cloud.AgentAMI != nil && *b.cfg.Cloud.AgentAMI != "" {
		return nil
	}
	ami, err := b.checkForExistingAMI(ctx)
	if err != nil {
		return err
	}
	if ami == "" {
		ami, err = b.createAgentAMI(ctx)
		if err != nil {
			return err
		}
	}
	b.cfg.Cloud.AgentAMI = &ami
	return nil
}

// checkForExistingAMI queries images owned by the caller with the derived
// name; returns "" (not an error) when none is found.
func (b *Backend) checkForExistingAMI(ctx *hscontext.Context) (string, error) {
	name := b.amiName()
	out, err := b.ec2.DescribeImages(ctx.Context, &ec2.DescribeImagesInput{
		Owners:  []string{"self"},
		Filters: []types.Filter{{Name: aws.String("name"), Values: []string{name}}},
	})
	if err != nil {
		return "", errors.Wrap(err, "describing images")
	}
	for _, img := range out.Images {
		if img.State == types.ImageStateAvailable {
			return aws.ToString(img.ImageId), nil
		}
	}
	return "", nil
}

// createAgentAMI launches a builder instance, waits for both status checks,
// provisions Java + JMeter over SSH, snapshots to an AMI, and guarantees the
// builder instance is terminated on every exit path.
func (b *Backend) createAgentAMI(ctx *hscontext.Context) (ami string, err error) {
	baseAMI, ok := baseAMIByRegion[b.cfg.Cloud.Region]
	if !ok {
		return "", errors.Errorf("no base ami configured for region %q", b.cfg.Cloud.Region)
	}

	run, err := b.ec2.RunInstances(ctx.Context, &ec2.RunInstancesInput{
		ImageId:      aws.String(baseAMI),
		InstanceType: types.InstanceType(b.cfg.Cloud.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		KeyName:      aws.String(fmt.Sprintf("hailstorm-%s", b.cfg.ProjectCode)),
	})
	if err != nil {
		return "", errors.Wrap(err, "launching builder instance")
	}
	instanceID := aws.ToString(run.Instances[0].InstanceId)
	b.builderInstanceID = instanceID

	// Guaranteed release: the builder instance is terminated on every exit
	// path, success or failure.
	defer func() {
		_, termErr := b.ec2.TerminateInstances(ctx.Context, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
		if termErr != nil {
			ctx.Log.Error().Err(termErr).Str("instance_id", instanceID).Msg("failed to release ami builder instance")
		}
		b.builderInstanceID = ""
	}()

	if err := util.PollUntil(ctx, "builder instance status checks", 15*time.Minute, 15*time.Second, func() (bool, error) {
		return b.instanceStatusOK(ctx, instanceID)
	}); err != nil {
		return "", err
	}

	publicIP, err := b.publicIPOf(ctx, instanceID)
	if err != nil {
		return "", err
	}
	if err := b.provision(ctx, publicIP); err != nil {
		return "", errors.Wrap(err, "provisioning builder instance")
	}

	image, err := b.ec2.CreateImage(ctx.Context, &ec2.CreateImageInput{
		InstanceId: aws.String(instanceID),
		Name:       aws.String(b.amiName()),
	})
	if err != nil {
		return "", errors.Wrap(err, "creating image")
	}
	return aws.ToString(image.ImageId), nil
}

// instanceStatusOK tolerates transient describe failures (the status API
// can lag right after RunInstances) rather than failing the whole poll.
func (b *Backend) instanceStatusOK(ctx *hscontext.Context, instanceID string) (bool, error) {
	out, err := b.ec2.DescribeInstanceStatus(ctx.Context, &ec2.DescribeInstanceStatusInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		ctx.Log.Debug().Err(err).Msg("transient error polling instance status, retrying")
		return false, nil
	}
	if len(out.InstanceStatuses) == 0 {
		return false, nil
	}
	status := out.InstanceStatuses[0]
	return status.SystemStatus.Status == types.SummaryStatusOk &&
		status.InstanceStatus.Status == types.SummaryStatusOk, nil
}

func (b *Backend) publicIPOf(ctx *hscontext.Context, instanceID string) (string, error) {
	out, err := b.ec2.DescribeInstances(ctx.Context, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return "", errors.Wrap(err, "describing instance")
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return "", errors.Errorf("instance %s not found", instanceID)
	}
	ip := aws.ToString(out.Reservations[0].Instances[0].PublicIpAddress)
	if ip == "" {
		return "", errors.Errorf("instance %s has no public ip yet", instanceID)
	}
	return ip, nil
}

// provision installs Java and JMeter onto a builder instance over SSH,
// using the installer URL when a custom one was configured.
func (b *Backend) provision(ctx *hscontext.Context, publicIP string) error {
	identity, err := os.ReadFile(b.cfg.Cloud.SSHIdentity)
	if err != nil {
		return errors.Wrap(err, "reading ssh identity")
	}
	exec, err := remote.NewExecutor(remote.Host{
		Address:     publicIP,
		Port:        b.cfg.Cloud.SSHPort,
		UserName:    b.cfg.Cloud.UserName,
		IdentityKey: identity,
	})
	if err != nil {
		return err
	}
	if err := exec.EnsureConnectivity(ctx); err != nil {
		return err
	}

	installerURL := b.cfg.InstallerURL
	if installerURL == "" {
		installerURL = fmt.Sprintf("https://archive.apache.org/dist/jmeter/binaries/apache-jmeter-%s.tgz", b.cfg.JmeterVersion)
	}
	cmd := fmt.Sprintf("sudo apt-get update -y && sudo apt-get install -y default-jre && "+
		"curl -sSL %s -o /tmp/jmeter.tgz && sudo tar -xzf /tmp/jmeter.tgz -C /opt", installerURL)
	result, err := exec.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.Errorf("provisioning command exited %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}

// ensureSecurityGroup is idempotent create: if it already exists by name,
// adopt it; otherwise create it open on the configured SSH port.
func (b *Backend) ensureSecurityGroup(ctx *hscontext.Context) error {
	name := b.cfg.Cloud.SecurityGroup
	existing, err := b.ec2.DescribeSecurityGroups(ctx.Context, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{{Name: aws.String("group-name"), Values: []string{name}}},
	})
	if err == nil && len(existing.SecurityGroups) > 0 {
		return nil
	}

	created, err := b.ec2.CreateSecurityGroup(ctx.Context, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("hailstorm load agent access"),
	})
	if err != nil {
		return errors.Wrap(err, "creating security group")
	}
	_, err = b.ec2.AuthorizeSecurityGroupIngress(ctx.Context, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: created.GroupId,
		IpPermissions: []types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(b.cfg.Cloud.SSHPort)),
			ToPort:     aws.Int32(int32(b.cfg.Cloud.SSHPort)),
			IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}},
	})
	return errors.Wrap(err, "authorizing security group ingress")
}

// RequiredAgentCount computes ceil(num_threads / max_threads_per_agent)
// for elastic clusters, deriving the denominator from instance type when
// unset.
func (b *Backend) RequiredAgentCount(plan *model.JmeterPlan) (int, error) {
	maxThreads := b.cfg.Cloud.MaxThreadsPerAgent
	var denom int
	if maxThreads != nil && *maxThreads > 0 {
		denom = *maxThreads
	} else {
		denom = cluster.DefaultMaxThreadsPerAgent(b.cfg.Cloud.InstanceType)
	}
	if plan.LatestThreadsCount <= 0 {
		return 0, errors.New("plan has no thread count to size agents from")
	}
	return int(math.Ceil(float64(plan.LatestThreadsCount) / float64(denom))), nil
}

// EnsureAgents launches or restarts EC2 instances so that len(agents) == n
// agents are running. Store-level binding (which agent rows exist, surplus
// disabling) is internal/agent's job; this method
// only ensures the backend-side host for each already-decided agent row
// is in a RUNNING state, creating new instances via readiness polling when
// an agent has no identifier yet.
func (b *Backend) EnsureAgents(ctx *hscontext.Context, agents []model.LoadAgent, n int) error {
	group, groupCtx := hscontext.ErrGroup(ctx)
	for i := range agents {
		agent := &agents[i]
		group.Go(func() error {
			if agent.Identifier == "" {
				return b.createInstance(groupCtx, agent)
			}
			return b.StartAgent(groupCtx, agent)
		})
	}
	return group.Wait()
}

// createInstance implements "Readiness": launch, then wait
// until the instance exists, has a public IP, and its SSH port answers.
func (b *Backend) createInstance(ctx *hscontext.Context, agent *model.LoadAgent) error {
	run, err := b.ec2.RunInstances(ctx.Context, &ec2.RunInstancesInput{
		ImageId:          b.cfg.Cloud.AgentAMI,
		InstanceType:     types.InstanceType(b.cfg.Cloud.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		KeyName:          aws.String(fmt.Sprintf("hailstorm-%s", b.cfg.ProjectCode)),
		SecurityGroups:   []string{b.cfg.Cloud.SecurityGroup},
		Placement:        &types.Placement{AvailabilityZone: aws.String(b.cfg.Cloud.Zone)},
	})
	if err != nil {
		return errors.Wrap(err, "launching agent instance")
	}
	instanceID := aws.ToString(run.Instances[0].InstanceId)
	agent.Identifier = instanceID

	var publicIP string
	err = util.PollUntil(ctx, fmt.Sprintf("agent %s readiness", instanceID), 5*time.Minute, 10*time.Second, func() (bool, error) {
		ip, ipErr := b.publicIPOf(ctx, instanceID)
		if ipErr != nil {
			return false, nil
		}
		publicIP = ip
		exec, execErr := remote.NewExecutor(remote.Host{Address: ip, Port: b.cfg.Cloud.SSHPort, UserName: b.cfg.Cloud.UserName})
		if execErr != nil {
			return false, nil
		}
		return exec.EnsureConnectivity(ctx) == nil, nil
	})
	if err != nil {
		return err
	}
	agent.PublicIPAddress = &publicIP
	return nil
}

// StartAgent starts (or restarts) an agent's EC2 instance; idempotent when
// already running.
func (b *Backend) StartAgent(ctx *hscontext.Context, agent *model.LoadAgent) error {
	if agent.Identifier == "" {
		return nil // no host yet; nothing to start
	}
	state, err := b.instanceState(ctx, agent.Identifier)
	if err != nil {
		return err
	}
	if state == StateRunning {
		return nil
	}
	if state == StateTerminated || state == StateAbsent {
		return nil // instance already gone; nothing to restart
	}
	_, err = b.ec2.StartInstances(ctx.Context, &ec2.StartInstancesInput{InstanceIds: []string{agent.Identifier}})
	return errors.Wrap(err, "starting agent instance")
}

// StopAgent stops the EC2 instance without terminating it, clearing the agent's public IP since it's
// reassigned on next start.
func (b *Backend) StopAgent(ctx *hscontext.Context, agent *model.LoadAgent) error {
	if agent.Identifier == "" {
		return nil
	}
	state, err := b.instanceState(ctx, agent.Identifier)
	if err != nil {
		return err
	}
	if state == StateStopped || state == StateTerminated || state == StateAbsent {
		return nil
	}
	if _, err := b.ec2.StopInstances(ctx.Context, &ec2.StopInstancesInput{InstanceIds: []string{agent.Identifier}}); err != nil {
		return errors.Wrap(err, "stopping agent instance")
	}
	agent.PublicIPAddress = nil
	return nil
}

// TerminateAgent terminates the EC2 instance permanently; idempotent and
// silently ignores already-missing hosts.
func (b *Backend) TerminateAgent(ctx *hscontext.Context, agent *model.LoadAgent) error {
	if agent.Identifier == "" {
		return nil
	}
	state, err := b.instanceState(ctx, agent.Identifier)
	if err != nil {
		return err
	}
	if state == StateTerminated || state == StateAbsent {
		return nil
	}
	_, err = b.ec2.TerminateInstances(ctx.Context, &ec2.TerminateInstancesInput{InstanceIds: []string{agent.Identifier}})
	return errors.Wrap(err, "terminating agent instance")
}

func (b *Backend) instanceState(ctx *hscontext.Context, instanceID string) (InstanceState, error) {
	out, err := b.ec2.DescribeInstances(ctx.Context, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return StateAbsent, nil //nolint:nilerr // a describe error on a torn-down instance means "absent", not a failure
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return StateAbsent, nil
	}
	switch out.Reservations[0].Instances[0].State.Name {
	case types.InstanceStateNamePending:
		return StatePending, nil
	case types.InstanceStateNameRunning:
		return StateRunning, nil
	case types.InstanceStateNameStopped, types.InstanceStateNameStopping:
		return StateStopped, nil
	case types.InstanceStateNameTerminated, types.InstanceStateNameShuttingDown:
		return StateTerminated, nil
	default:
		return StateAbsent, nil
	}
}

// Cleanup deletes auto-created key pairs and any builder instance left
// dangling by a crash mid-AMI-build.
func (b *Backend) Cleanup(ctx *hscontext.Context) error {
	cleanupErr := hserrors.NewSetupException()

	if b.builderInstanceID != "" {
		_, err := b.ec2.TerminateInstances(ctx.Context, &ec2.TerminateInstancesInput{InstanceIds: []string{b.builderInstanceID}})
		cleanupErr.Add("releasing builder instance", err)
	}
	if b.cfg.Cloud.AutogeneratedSSHKey {
		keyName := fmt.Sprintf("hailstorm-%s", b.cfg.ProjectCode)
		_, err := b.ec2.DeleteKeyPair(ctx.Context, &ec2.DeleteKeyPairInput{KeyName: aws.String(keyName)})
		cleanupErr.Add("deleting auto-created key pair", err)
		if err == nil {
			_ = os.Remove(b.cfg.Cloud.SSHIdentity)
		}
	}
	return cleanupErr.ErrorOrNil()
}
