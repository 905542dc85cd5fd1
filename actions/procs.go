package actions

import "github.com/criyle/go-guestfsd/daemon"

// Procedure numbers shared with the library
const (
	ProcMount             int32 = 1
	ProcUmount            int32 = 45
	ProcUmountAll         int32 = 47
	ProcCommand           int32 = 50
	ProcCommandLines      int32 = 51
	ProcBlockdevGetsize64 int32 = 62
	ProcUpload            int32 = 66
	ProcDownload          int32 = 67
	ProcChecksum          int32 = 68
	ProcMountRO           int32 = 73
	ProcMountOptions      int32 = 74
	ProcMountVFS          int32 = 75
	ProcSh                int32 = 111
	ProcShLines           int32 = 112
	ProcRealpath          int32 = 163
	ProcPingDaemon        int32 = 180
	ProcLuksOpen          int32 = 222
	ProcLuksOpenRO        int32 = 223
	ProcLuksClose         int32 = 224
	ProcLuksFormat        int32 = 225
	ProcLuksFormatCipher  int32 = 226
	ProcLuksKillSlot      int32 = 228
	ProcCompressOut       int32 = 291
	ProcCompressDeviceOut int32 = 292
	ProcUploadOffset      int32 = 333
	ProcDownloadOffset    int32 = 334
)

// Procedures returns the procedure table of d
func (d *Daemon) Procedures() map[int32]daemon.Procedure {
	return map[int32]daemon.Procedure{
		ProcMount:             {Name: "mount", Handler: d.mount},
		ProcUmount:            {Name: "umount", Handler: d.umount},
		ProcUmountAll:         {Name: "umount_all", Handler: d.umountAll},
		ProcCommand:           {Name: "command", Handler: d.command},
		ProcCommandLines:      {Name: "command_lines", Handler: d.commandLines},
		ProcBlockdevGetsize64: {Name: "blockdev_getsize64", Handler: d.blockdevGetsize64},
		ProcUpload:            {Name: "upload", Handler: d.upload, FileIn: true},
		ProcDownload:          {Name: "download", Handler: d.download},
		ProcChecksum:          {Name: "checksum", Handler: d.checksum},
		ProcMountRO:           {Name: "mount_ro", Handler: d.mountRO},
		ProcMountOptions:      {Name: "mount_options", Handler: d.mountOptions},
		ProcMountVFS:          {Name: "mount_vfs", Handler: d.mountVFS},
		ProcSh:                {Name: "sh", Handler: d.sh},
		ProcShLines:           {Name: "sh_lines", Handler: d.shLines},
		ProcRealpath:          {Name: "realpath", Handler: d.realpath},
		ProcPingDaemon:        {Name: "ping_daemon", Handler: d.pingDaemon},
		ProcLuksOpen:          {Name: "luks_open", Handler: d.luksOpen},
		ProcLuksOpenRO:        {Name: "luks_open_ro", Handler: d.luksOpenRO},
		ProcLuksClose:         {Name: "luks_close", Handler: d.luksClose},
		ProcLuksFormat:        {Name: "luks_format", Handler: d.luksFormat},
		ProcLuksFormatCipher:  {Name: "luks_format_cipher", Handler: d.luksFormatWithCipher},
		ProcLuksKillSlot:      {Name: "luks_kill_slot", Handler: d.luksKillSlot},
		ProcCompressOut:       {Name: "compress_out", Handler: d.compressOut},
		ProcCompressDeviceOut: {Name: "compress_device_out", Handler: d.compressDeviceOut},
		ProcUploadOffset:      {Name: "upload_offset", Handler: d.uploadOffset, FileIn: true},
		ProcDownloadOffset:    {Name: "download_offset", Handler: d.downloadOffset},
	}
}
